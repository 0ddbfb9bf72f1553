package catalog

import (
	"container/list"
	"sync"

	"github.com/omkarjtg/ecomm/internal/domain/catalog"
)

const defaultImageCacheSize = 128

// imageCache keeps the most recently used product images
type imageCache struct {
	mu    sync.Mutex
	size  int
	order *list.List
	items map[int64]*list.Element
}

type imageEntry struct {
	id  int64
	img catalog.Image
}

func newImageCache(size int) *imageCache {
	if size < 1 {
		size = defaultImageCacheSize
	}
	return &imageCache{size: size, order: list.New(), items: make(map[int64]*list.Element)}
}

func (c *imageCache) get(id int64) (catalog.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[id]
	if !ok {
		return catalog.Image{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*imageEntry).img, true
}

func (c *imageCache) put(id int64, img catalog.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		el.Value.(*imageEntry).img = img
		c.order.MoveToFront(el)
		return
	}
	c.items[id] = c.order.PushFront(&imageEntry{id: id, img: img})
	for c.order.Len() > c.size {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.items, last.Value.(*imageEntry).id)
	}
}

func (c *imageCache) remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		c.order.Remove(el)
		delete(c.items, id)
	}
}
