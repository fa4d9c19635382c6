package main

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightshade3d/scene-api/scene"
)

func TestStateRoundtrip(t *testing.T) {
	manager := NewStateManager([]byte("test-secret"))

	token, err := manager.Serialize(State{Position: scene.Vector3{X: 0, Y: 10, Z: 15}})
	require.NoError(t, err)

	state, err := manager.Deserialize(token)
	require.NoError(t, err)
	assert.Equal(t, scene.Vector3{X: 0, Y: 10, Z: 15}, state.Position)
}

func TestDeserializeRejectsWrongSecret(t *testing.T) {
	token, err := NewStateManager([]byte("one-secret")).Serialize(State{})
	require.NoError(t, err)

	_, err = NewStateManager([]byte("another-secret")).Deserialize(token)
	assert.Error(t, err)
}

func TestDeserializeRejectsUnsignedToken(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"position": scene.Vector3{X: 1},
		"nbf":      time.Now().Unix(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewStateManager([]byte("test-secret")).Deserialize(token)
	assert.Error(t, err)
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	_, err := NewStateManager([]byte("test-secret")).Deserialize("not-a-token")
	assert.Error(t, err)
}
