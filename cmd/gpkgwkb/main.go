// Command gpkgwkb inspects GeoPackage geometry blobs, manages the
// extensions registered in a GeoPackage and exports or serves its feature
// tables as FlatGeobuf.
package main

import (
	"os"

	"github.com/tingold/gpkg-wkb/internal/log"
)

func main() {
	err := newRootCmd().Execute()
	_ = log.Sync()
	if err != nil {
		os.Exit(1)
	}
}
