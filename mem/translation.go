package mem

import (
	"fmt"
	"sort"
	"sync"
)

// A Page maps one virtual page to one physical page.
type Page struct {
	VAddr uint64
	PAddr uint64
	Valid bool
}

// PageTranslation is a page-granular TranslationIF.
type PageTranslation struct {
	sync.Mutex
	log2PageSize uint64
	pages        map[uint64]Page
}

// NewPageTranslation creates an empty translation with pages of
// 1<<log2PageSize bytes.
func NewPageTranslation(log2PageSize uint64) *PageTranslation {
	return &PageTranslation{
		log2PageSize: log2PageSize,
		pages:        make(map[uint64]Page),
	}
}

// PageSize returns the page size in bytes.
func (t *PageTranslation) PageSize() uint64 {
	return 1 << t.log2PageSize
}

func (t *PageTranslation) alignToPage(addr uint64) uint64 {
	return (addr >> t.log2PageSize) << t.log2PageSize
}

// Insert adds a valid page. Both addresses must be page aligned.
func (t *PageTranslation) Insert(vAddr, pAddr uint64) error {
	if t.alignToPage(vAddr) != vAddr || t.alignToPage(pAddr) != pAddr {
		return fmt.Errorf("mem: page 0x%x -> 0x%x is not aligned to %d bytes",
			vAddr, pAddr, t.PageSize())
	}

	t.Lock()
	defer t.Unlock()

	t.pages[vAddr] = Page{VAddr: vAddr, PAddr: pAddr, Valid: true}

	return nil
}

// Remove removes the page that contains vAddr. The page must exist.
func (t *PageTranslation) Remove(vAddr uint64) {
	t.Lock()
	defer t.Unlock()

	vAddr = t.alignToPage(vAddr)
	t.pageMustExist(vAddr)
	delete(t.pages, vAddr)
}

// Invalidate keeps the page but stops it from translating.
func (t *PageTranslation) Invalidate(vAddr uint64) {
	t.Lock()
	defer t.Unlock()

	vAddr = t.alignToPage(vAddr)
	t.pageMustExist(vAddr)

	page := t.pages[vAddr]
	page.Valid = false
	t.pages[vAddr] = page
}

// Find returns the page that contains vAddr.
func (t *PageTranslation) Find(vAddr uint64) (Page, bool) {
	t.Lock()
	defer t.Unlock()

	page, found := t.pages[t.alignToPage(vAddr)]

	return page, found
}

// Pages returns the pages sorted by virtual address.
func (t *PageTranslation) Pages() []Page {
	t.Lock()
	defer t.Unlock()

	pages := make([]Page, 0, len(t.pages))
	for _, p := range t.pages {
		pages = append(pages, p)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].VAddr < pages[j].VAddr })

	return pages
}

// Translate maps a virtual address to a physical address through a valid
// page.
func (t *PageTranslation) Translate(addr uint64) (uint64, bool) {
	page, found := t.Find(addr)
	if !found || !page.Valid {
		return 0, false
	}

	return page.PAddr + addr - page.VAddr, true
}

func (t *PageTranslation) pageMustExist(vAddr uint64) {
	if _, found := t.pages[vAddr]; !found {
		panic("page does not exist")
	}
}
