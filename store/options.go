/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package store

import (
	"time"

	"devt.de/krotik/tdb/btree"
	"devt.de/krotik/tdb/config"
)

/*
OptionsFromConfig creates store options from the current configuration.
*/
func OptionsFromConfig() (Options, error) {
	options := DefaultOptions()

	duplicates, err := btree.ParseDuplicatePolicy(config.Str(config.DuplicatePolicy))
	if err != nil {
		return options, err
	}

	options.BlockSize = int(config.Int(config.BlockSize))
	options.LeafCapacity = int(config.Int(config.LeafCapacity))
	options.BranchCapacity = int(config.Int(config.BranchCapacity))
	options.BlockCacheSize = int(config.Int(config.BlockCacheSize))
	options.Duplicates = duplicates
	options.ClearDeleted = config.Bool(config.ClearDeletedData)
	options.LockFile = config.Bool(config.EnableLockFile)
	options.LockInterval = time.Duration(config.Int(config.LockFileIntervalMillis)) * time.Millisecond
	options.ReadOnly = config.Bool(config.EnableReadOnly)

	options.Nodes.NodeCacheSize = int(config.Int(config.NodeCacheSize))
	options.Nodes.NodeIDCacheSize = config.Int(config.NodeIDCacheSize)
	options.Nodes.MissCacheSize = uint64(config.Int(config.NodeMissCacheSize))
	options.Nodes.MissCacheMaxAge = config.Int(config.NodeMissCacheMaxAgeSeconds)
	options.Nodes.Compress = config.Bool(config.CompressNodes)
	options.Nodes.ClearDeleted = options.ClearDeleted

	return options, nil
}
