package mapping

// Changes accumulates which target documents a mapping run modified. It is
// created per record and passed explicitly to every mapper; flags are only
// ever set, never cleared.
type Changes struct {
	mods bool
	slub bool
}

// ModsChanged records a structural change to the bibliographic document.
func (c *Changes) ModsChanged() { c.mods = true }

// SlubChanged records a structural change to the institutional extension.
func (c *Changes) SlubChanged() { c.slub = true }

// Mods reports whether the bibliographic document was modified.
func (c *Changes) Mods() bool { return c.mods }

// Slub reports whether the institutional extension was modified.
func (c *Changes) Slub() bool { return c.slub }

// Any reports whether either document was modified.
func (c *Changes) Any() bool { return c.mods || c.slub }
