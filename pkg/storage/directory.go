package storage

import (
	"path/filepath"
	"sync"

	"github.com/lintang-b-s/fastisochrone/pkg"
)

// Directory hands out one DataAccess per name, either backed by files under dir or kept in memory.
type Directory struct {
	dir     string
	inMem   bool
	mu      sync.Mutex
	regions map[string]*DataAccess
}

func NewDirectory(dir string) *Directory {
	return &Directory{dir: dir, regions: make(map[string]*DataAccess)}
}

func NewRAMDirectory() *Directory {
	return &Directory{inMem: true, regions: make(map[string]*DataAccess)}
}

func (d *Directory) GetLocation() string {
	return d.dir
}

func (d *Directory) Find(name string) *DataAccess {
	d.mu.Lock()
	defer d.mu.Unlock()
	if da, ok := d.regions[name]; ok {
		return da
	}
	path := ""
	if !d.inMem {
		path = filepath.Join(d.dir, name+pkg.STORAGE_FILE_EXTENSION)
	}
	da := newDataAccess(name, path)
	d.regions[name] = da
	return da
}
