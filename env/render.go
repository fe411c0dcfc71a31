package env

import "github.com/pocokhc/simple-rl/spaces"

// renderCache memoizes the backend's renders for the current state.
// It is owned by one EnvRun and invalidated at every state-mutating
// transition; it never appears in snapshots.
type renderCache struct {
	text    string
	textOK  bool
	image   spaces.Tensor
	imageOK bool
}

func (c *renderCache) invalidate() {
	c.text = ""
	c.textOK = false
	c.image = spaces.Tensor{}
	c.imageOK = false
}

// RenderText returns the backend's terminal render of the current
// state, or an empty string when the backend has no renderer.
func (e *EnvRun) RenderText() string {
	if e.renderer == nil {
		return ""
	}
	if !e.render.textOK {
		e.render.text = e.renderer.RenderText()
		e.render.textOK = true
	}
	return e.render.text
}

// RenderImage returns the backend's RGB render of the current state, or
// a zero tensor when the backend has no renderer.
func (e *EnvRun) RenderImage() spaces.Tensor {
	if e.renderer == nil {
		return spaces.Tensor{}
	}
	if !e.render.imageOK {
		e.render.image = e.renderer.RenderImage()
		e.render.imageOK = true
	}
	return e.render.image
}

// HasRenderer reports whether the backend can render at all.
func (e *EnvRun) HasRenderer() bool { return e.renderer != nil }

// RenderImageSize returns the static height and width of RenderImage
// output, or zeros without a renderer.
func (e *EnvRun) RenderImageSize() (h, w int) {
	if e.renderer == nil {
		return 0, 0
	}
	return e.renderer.ImageSize()
}
