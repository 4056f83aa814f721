package navsync

// Listeners fans notifications out in order.
type Listeners []Listener

func (ls Listeners) Scrolled(x, y float64) {
	for _, l := range ls {
		l.Scrolled(x, y)
	}
}

func (ls Listeners) Resized(w, h int) {
	for _, l := range ls {
		l.Resized(w, h)
	}
}

func (ls Listeners) FocusRegained(x, y float64) {
	for _, l := range ls {
		l.FocusRegained(x, y)
	}
}

func (ls Listeners) LocationChanged(url string) {
	for _, l := range ls {
		l.LocationChanged(url)
	}
}

func (ls Listeners) PageElementsChanged() {
	for _, l := range ls {
		l.PageElementsChanged()
	}
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnScrolled            func(x, y float64)
	OnResized             func(w, h int)
	OnFocusRegained       func(x, y float64)
	OnLocationChanged     func(url string)
	OnPageElementsChanged func()
}

func (f ListenerFuncs) Scrolled(x, y float64) {
	if f.OnScrolled != nil {
		f.OnScrolled(x, y)
	}
}

func (f ListenerFuncs) Resized(w, h int) {
	if f.OnResized != nil {
		f.OnResized(w, h)
	}
}

func (f ListenerFuncs) FocusRegained(x, y float64) {
	if f.OnFocusRegained != nil {
		f.OnFocusRegained(x, y)
	}
}

func (f ListenerFuncs) LocationChanged(url string) {
	if f.OnLocationChanged != nil {
		f.OnLocationChanged(url)
	}
}

func (f ListenerFuncs) PageElementsChanged() {
	if f.OnPageElementsChanged != nil {
		f.OnPageElementsChanged()
	}
}
