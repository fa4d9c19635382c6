package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/mitchellh/mapstructure"

	"github.com/nightshade3d/scene-api/scene"
)

// State is the session state handed to clients as a signed token. A client
// presenting it on reconnect resumes from its last camera position.
type State struct {
	Position scene.Vector3
}

type StateManager struct {
	secret []byte
}

func NewStateManager(secret []byte) *StateManager {
	return &StateManager{
		secret: secret,
	}
}

func (r *StateManager) Deserialize(state string) (*State, error) {
	token, err := jwt.Parse(state, func(jwtToken *jwt.Token) (interface{}, error) {
		if _, ok := jwtToken.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected method: %s", jwtToken.Header["alg"])
		}

		return r.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid state provided")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims format")
	}

	var s State
	if err := mapstructure.Decode(claims["position"], &s.Position); err != nil {
		return nil, fmt.Errorf("bad position claim: %w", err)
	}

	return &s, nil
}

func (r *StateManager) Serialize(state State) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"position": state.Position,
		"nbf":      time.Now().Unix(),
	})

	return token.SignedString(r.secret)
}
