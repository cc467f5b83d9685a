/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package config contains the global configuration of a TDB store.
*/
package config

import (
	"fmt"
	"strconv"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/fileutil"
)

// Global variables
// ================

/*
ProductVersion is the current version of TDB
*/
const ProductVersion = "1.0.0"

/*
DefaultConfigFile is the default config file which will be used to configure TDB
*/
var DefaultConfigFile = "tdb.config.json"

/*
Known configuration options for TDB
*/
const (
	LocationDatastore          = "LocationDatastore"
	BlockSize                  = "BlockSize"
	LeafCapacity               = "LeafCapacity"
	BranchCapacity             = "BranchCapacity"
	BlockCacheSize             = "BlockCacheSize"
	NodeCacheSize              = "NodeCacheSize"
	NodeIDCacheSize            = "NodeIDCacheSize"
	NodeMissCacheSize          = "NodeMissCacheSize"
	NodeMissCacheMaxAgeSeconds = "NodeMissCacheMaxAgeSeconds"
	CompressNodes              = "CompressNodes"
	ClearDeletedData           = "ClearDeletedData"
	DuplicatePolicy            = "DuplicatePolicy"
	EnableLockFile             = "EnableLockFile"
	LockFileIntervalMillis     = "LockFileIntervalMillis"
	EnableReadOnly             = "EnableReadOnly"
)

/*
DefaultConfig is the default configuration
*/
var DefaultConfig = map[string]interface{}{
	LocationDatastore:          "db",
	BlockSize:                  "4096",
	LeafCapacity:               "0",
	BranchCapacity:             "0",
	BlockCacheSize:             "1000",
	NodeCacheSize:              "10000",
	NodeIDCacheSize:            "1048576",
	NodeMissCacheSize:          "1000",
	NodeMissCacheMaxAgeSeconds: "60",
	CompressNodes:              true,
	ClearDeletedData:           true,
	DuplicatePolicy:            "replace",
	EnableLockFile:             true,
	LockFileIntervalMillis:     "1000",
	EnableReadOnly:             false,
}

/*
Config is the actual config which is used
*/
var Config map[string]interface{}

/*
LoadConfigFile loads a given config file. If the config file does not exist it is
created with the default options.
*/
func LoadConfigFile(configfile string) error {
	var err error

	Config, err = fileutil.LoadConfig(configfile, DefaultConfig)

	return err
}

/*
LoadDefaultConfig loads the default configuration.
*/
func LoadDefaultConfig() {
	data := make(map[string]interface{})
	for k, v := range DefaultConfig {
		data[k] = v
	}

	Config = data
}

// Helper functions
// ================

/*
Str reads a config value as a string value.
*/
func Str(key string) string {
	return fileutil.ConfStr(Config, key)
}

/*
Int reads a config value as an int value.
*/
func Int(key string) int64 {
	ret, err := strconv.ParseInt(fmt.Sprint(Config[key]), 10, 64)

	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Bool reads a config value as a boolean value.
*/
func Bool(key string) bool {
	return fileutil.ConfBool(Config, key)
}
