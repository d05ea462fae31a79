package model

// ZoomImage is the outcome of fetching one satellite image. Exactly one of
// Data and Err is set.
type ZoomImage struct {
	Zoom int
	Data []byte
	Err  error
}

// OK reports whether the fetch produced image bytes.
func (z ZoomImage) OK() bool {
	return z.Err == nil && len(z.Data) > 0
}
