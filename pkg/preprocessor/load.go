package preprocessor

import (
	"github.com/lintang-b-s/fastisochrone/pkg/costfunction"
	"github.com/lintang-b-s/fastisochrone/pkg/storage"
	"github.com/lintang-b-s/fastisochrone/pkg/util"
)

// Storages are the read only storages a fast isochrone query needs for one weighting.
type Storages struct {
	IsoNodes    *storage.IsochroneNodeStorage
	CellStorage *storage.CellStorage
	EccStorage  *storage.EccentricityStorage
	DistStorage *storage.BorderNodeDistanceStorage
}

// LoadStorages loads the storages a previous Pipeline.Run flushed into dir.
func LoadStorages(dir *storage.Directory, nodeCount int, weighting costfunction.Weighting) (*Storages, error) {
	s := &Storages{
		IsoNodes:    storage.NewIsochroneNodeStorage(nodeCount, dir),
		EccStorage:  storage.NewEccentricityStorage(dir, weighting.Name()),
		DistStorage: storage.NewBorderNodeDistanceStorage(dir, weighting.Name()),
	}
	s.CellStorage = storage.NewCellStorage(nodeCount, dir, s.IsoNodes)

	loaders := []struct {
		name string
		load func() (bool, error)
	}{
		{"isochrone nodes", s.IsoNodes.LoadExisting},
		{"cells", s.CellStorage.LoadExisting},
		{"eccentricities", s.EccStorage.LoadExisting},
		{"border node distances", s.DistStorage.LoadExisting},
	}
	for _, l := range loaders {
		ok, err := l.load()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, util.WrapErrorf(nil, util.ErrNotFound, "%s storage not found in %s, run the preprocessor first",
				l.name, dir.GetLocation())
		}
	}

	if s.IsoNodes.NumberOfNodes() != nodeCount {
		return nil, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData,
			"storages were built for %d nodes, graph has %d", s.IsoNodes.NumberOfNodes(), nodeCount)
	}
	if s.CellStorage.IsCorrupted() {
		return nil, util.WrapErrorf(util.ErrCorruptedData, util.ErrCorruptedData, "cell storage is corrupted")
	}
	return s, nil
}
