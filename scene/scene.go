// Package scene holds the things being rendered and the path tracer that
// lights them.
package scene

import (
	"row-major/pathtracer/camera"
	"row-major/pathtracer/geometry"
)

// Scene is a camera and an ordered list of things.  It is read-only while a
// render is running, so it can be shared by every worker without locking.
type Scene struct {
	camera camera.Camera
	things []geometry.Thing
}

func New(c camera.Camera) *Scene {
	return &Scene{camera: c}
}

// Add registers a thing and returns its index, which is also the index
// reported in intersection results.
func (s *Scene) Add(t geometry.Thing) int {
	s.things = append(s.things, t)
	return len(s.things) - 1
}

func (s *Scene) Camera() camera.Camera {
	return s.camera
}

func (s *Scene) Things() []geometry.Thing {
	return s.things
}

// Dimensions returns the pixel size of an image rendered at dpi pixels per
// unit of screen extent.
func (s *Scene) Dimensions(dpi float64) (int, int) {
	return int(dpi * s.camera.Width()), int(dpi * s.camera.Height())
}
