package catalog

import "log/slog"

// Sync walks the structures directory and brings the catalogue up to date:
//   - new/changed manifests are parsed and upserted
//   - manifests removed from disk are deleted from the catalogue
func (c *Catalog) Sync() error {
	metas, err := c.store.List("")
	if err != nil {
		return err
	}

	checksums, err := c.db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := c.store.Read(m.Path)
		if err != nil {
			c.logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexFile(c.db, m.Path, data); err != nil {
			c.logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			c.logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := c.db.DeleteStructure(p); err != nil {
				c.logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				c.logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}
