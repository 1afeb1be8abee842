package js_module

// Cache maps canonical identities to modules for one context. It is not locked: only the
// goroutine that owns the context touches it.
type Cache struct {
	modules map[string]*Module
	order   []string
}

func NewCache() *Cache {
	return &Cache{modules: make(map[string]*Module)}
}

func (c *Cache) Get(id string) (*Module, bool) {
	m, ok := c.modules[id]
	return m, ok
}

// Insert adds m under its identity. It reports false and leaves the cache untouched when the
// identity is already present.
func (c *Cache) Insert(m *Module) bool {
	if _, ok := c.modules[m.id]; ok {
		return false
	}
	c.modules[m.id] = m
	c.order = append(c.order, m.id)
	return true
}

// Delete removes id; the next require of it runs the loader again.
func (c *Cache) Delete(id string) bool {
	if _, ok := c.modules[id]; !ok {
		return false
	}
	delete(c.modules, id)
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// deleteIf removes id only while it still maps to m.
func (c *Cache) deleteIf(id string, m *Module) {
	if cur, ok := c.modules[id]; ok && cur == m {
		c.Delete(id)
	}
}

// Keys lists identities in insertion order.
func (c *Cache) Keys() []string {
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	return keys
}

func (c *Cache) Len() int {
	return len(c.modules)
}

// Clear drops every cached module.
func (c *Cache) Clear() {
	c.modules = make(map[string]*Module)
	c.order = nil
}
