package compositor

import (
	"container/list"
	"image"
	"sync"
)

type previewKey struct {
	ClipID      string
	TimestampMs int64
	LUTID       string
}

type cacheEntry struct {
	key previewKey
	img *image.RGBA
}

// previewCache is a small mutex-guarded LRU keyed by
// (clip, exact timestamp, lut).
type previewCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recent
	items    map[previewKey]*list.Element
}

func newPreviewCache(capacity int) *previewCache {
	if capacity < 1 {
		capacity = 1
	}
	return &previewCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[previewKey]*list.Element),
	}
}

func (c *previewCache) get(key previewKey) (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).img, true
}

func (c *previewCache) put(key previewKey, img *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).img = img
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, img: img})
	c.items[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *previewCache) invalidateClip(clipID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*cacheEntry).key.ClipID == clipID {
			c.order.Remove(el)
			delete(c.items, el.Value.(*cacheEntry).key)
		}
		el = next
	}
}

func (c *previewCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
