package restagecl

import (
	"os"
	"path/filepath"

	"github.com/dtn-bard/bard/internal/logger"
	"github.com/dtn-bard/bard/pkg/bard"
)

// Rescan re-enumerates the link's storage root from scratch and
// rebuilds external in-use accounting for every key it contains.
// Workers must already be paused by PauseForRescan before this is
// called; BARD's orchestrator guarantees that ordering.
func (r *RestageCL) Rescan() error {
	defer func() {
		select {
		case r.rescanCompleted <- struct{}{}:
		default:
		}
	}()

	totals := make(map[string]bard.Counters)
	var diskInUse, diskFiles uint64

	entries, err := os.ReadDir(r.cfg.StorageRoot)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == "quarantine" {
			continue
		}
		qt, scheme, node, err := bard.ParseDirectoryName(entry.Name(), r.cfg.Separators)
		if err != nil {
			logger.Error("rescan: skipping unparseable directory", "link", r.cfg.Name, "dir", entry.Name())
			continue
		}
		key := bard.CanonicalKey(qt, scheme, node)

		dirPath := filepath.Join(r.cfg.StorageRoot, entry.Name())
		files, err := os.ReadDir(dirPath)
		if err != nil {
			logger.Error("rescan: reading directory failed", "link", r.cfg.Name, "dir", dirPath, "error", err)
			continue
		}

		t := totals[key]
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			if _, err := bard.ParseFilename(f.Name(), r.cfg.Separators); err != nil {
				continue
			}
			t.Bundles++
			t.Bytes += uint64(info.Size())
			diskInUse += r.blockRound(uint64(info.Size()))
			diskFiles++
		}
		totals[key] = t
	}

	r.setDiskUsageTotals(diskInUse, diskFiles)
	return r.owner.ApplyRescanTotals(totals)
}
