package module

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/modforge/container/internal/types"
	"go.uber.org/zap"
)

// standardManifestAttrs are manifest attributes carrying no dependency
// information; the version inspector skips them.
var standardManifestAttrs = map[string]bool{
	"Manifest-Version":       true,
	"Implementation-Version": true,
	"Specification-Version":  true,
	"Archiver-Version":       true,
	"Bundle-Version":         true,
}

// Versions enumerates dependency-version metadata visible inside a
// running module's box. Diagnostic only: the listing is logged and
// returned in the response message. A module that is not deployed
// reports as not active.
func (m *Manager) Versions(name string) *types.Future {
	a := m.lookup(name)
	if a == nil {
		return types.Resolved(types.Fail("unknown module: %s", name))
	}

	snap := a.Snapshot()
	if snap.State != types.StateDeployed || snap.Box == nil {
		return types.Resolved(types.Fail("module %s is not active", name))
	}

	fut := types.NewFuture()
	go func() {
		entries, err := snap.Box.ManifestEntries(context.Background())
		if err != nil {
			fut.Resolve(types.Fail("versions for %s: %v", name, err))
			return
		}

		sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

		var b strings.Builder
		for _, e := range entries {
			if standardManifestAttrs[e.Key] {
				continue
			}
			fmt.Fprintf(&b, "%s %s\n", e.Key, e.Value)
			m.log.Info("module dependency",
				zap.String("module", name),
				zap.String("artifact", e.Key),
				zap.String("version", e.Value))
		}

		listing := b.String()
		if listing == "" {
			fut.Resolve(types.OK("module %s reports no dependency versions", name))
			return
		}
		fut.Resolve(types.OK("%s", listing))
	}()
	return fut
}
