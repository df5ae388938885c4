// main.go
//
// Collaborative item catalog data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-cmdb.
// jam-build-cmdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-cmdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-cmdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/localnerve/jam-build-cmdb/internal/blob"
	"github.com/localnerve/jam-build-cmdb/internal/config"
	"github.com/localnerve/jam-build-cmdb/internal/database"
	"github.com/localnerve/jam-build-cmdb/internal/search"
	"github.com/localnerve/jam-build-cmdb/internal/services"
)

func main() {
	os.Exit(run())
}

// run probes every dependency once and returns the process exit code
func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	appDB, err := database.Connect(cfg)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		return 1
	}
	defer database.Close(appDB)

	var probes []services.Probe
	if blobs, err := blob.New(cfg.BlobDir); err != nil {
		probes = append(probes, failedProbe("blob_dir", err))
	} else {
		probes = append(probes, services.BlobProbe(blobs))
	}
	if index, err := search.Open(cfg.SearchIndexPath); err != nil {
		probes = append(probes, failedProbe("search_index", err))
	} else {
		defer index.Close()
		probes = append(probes, services.SearchProbe(index))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	result := services.HealthCheck(ctx, cfg, appDB, probes...)

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Printf("Failed to marshal health check result: %v", err)
		return 1
	}
	fmt.Println(string(output))

	if result.Status != "healthy" {
		return 1
	}
	return 0
}

func failedProbe(name string, err error) services.Probe {
	return services.Probe{Name: name, Check: func(context.Context) error { return err }}
}
