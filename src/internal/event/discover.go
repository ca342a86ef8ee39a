// FILE: muxd/src/internal/event/discover.go
package event

// Binding pairs an event with the handler a kernel provides for it
type Binding struct {
	Event   Kind
	Handler Handler
}

// Cursor is a forward-only sequence of bindings, restartable with Rewind.
// It is a snapshot taken at discovery time.
type Cursor struct {
	bindings []Binding
	pos      int
}

// Discover walks the catalog in order and collects the kernel's handlers
func Discover(k Kernel) *Cursor {
	c := &Cursor{}
	if k == nil {
		return c
	}

	handlers := k.Handlers()
	for _, kind := range Catalog() {
		if h, ok := handlers[kind]; ok && h != nil {
			c.bindings = append(c.bindings, Binding{Event: kind, Handler: h})
		}
	}
	return c
}

// Valid reports whether Current has a binding
func (c *Cursor) Valid() bool {
	return c.pos < len(c.bindings)
}

// Current returns the binding under the cursor; call only when Valid
func (c *Cursor) Current() Binding {
	return c.bindings[c.pos]
}

// Next moves the cursor forward
func (c *Cursor) Next() {
	if c.pos < len(c.bindings) {
		c.pos++
	}
}

// Rewind puts the cursor back at the first binding
func (c *Cursor) Rewind() {
	c.pos = 0
}

// Len returns the number of bindings
func (c *Cursor) Len() int {
	return len(c.bindings)
}

// Bindings returns a copy of all bindings in catalog order
func (c *Cursor) Bindings() []Binding {
	out := make([]Binding, len(c.bindings))
	copy(out, c.bindings)
	return out
}
