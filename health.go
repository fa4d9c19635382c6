package main

import (
	"fmt"
	"net/http"

	"github.com/nightshade3d/scene-api/scene"
)

type healthController struct {
	world *scene.World
}

func (c healthController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Healthy: %d entities\n", c.world.Len())
}
