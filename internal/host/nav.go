package host

// PageKey is the current location; AOIs are grouped by the URL they were
// captured on.
func (p *Page) PageKey() (string, error) {
	return p.Location()
}

func (p *Page) Location() (string, error) {
	var u string
	err := p.call(p.ctx, &u, "location")
	return u, err
}

func (p *Page) PushState(url string) error {
	return p.call(p.ctx, nil, "push", url)
}

func (p *Page) ReplaceState(url string) error {
	return p.call(p.ctx, nil, "replace", url)
}

func (p *Page) Back() error {
	return p.call(p.ctx, nil, "back")
}

func (p *Page) Forward() error {
	return p.call(p.ctx, nil, "forward")
}

func (p *Page) Size() (int, int, error) {
	var wh [2]int
	err := p.call(p.ctx, &wh, "size")
	return wh[0], wh[1], err
}

func (p *Page) Scroll() (float64, float64, error) {
	var xy [2]float64
	err := p.call(p.ctx, &xy, "scroll")
	return xy[0], xy[1], err
}

func (p *Page) FocusActive() error {
	return p.call(p.ctx, nil, "focusActive")
}
