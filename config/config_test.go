/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"testing"
)

const testconf = "testconfig"

const invalidFileName = "**" + "\x00"

func TestConfig(t *testing.T) {

	Config = nil

	ioutil.WriteFile(testconf, []byte(`{
    "EnableReadOnly": true,
    "BlockSize": "8192"
}`), 0644)

	defer func() {
		if err := os.Remove(testconf); err != nil {
			fmt.Print("Could not remove test config file:", err.Error())
		}
	}()

	if err := LoadConfigFile(testconf); err != nil {
		t.Error(err)
		return
	}

	if res := Str(EnableReadOnly); res != "true" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Bool(EnableReadOnly); !res {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Int(BlockSize); res != 8192 {
		t.Error("Unexpected result:", res)
		return
	}

	// Missing values are filled with defaults

	if res := Int(NodeIDCacheSize); fmt.Sprint(res) != DefaultConfig[NodeIDCacheSize] {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Str(DuplicatePolicy); res != "replace" {
		t.Error("Unexpected result:", res)
		return
	}

	LoadDefaultConfig()

	if res := Str(EnableReadOnly); res != "false" {
		t.Error("Unexpected result:", res)
		return
	}

	Config[BlockCacheSize] = "123"

	if res := Int(BlockCacheSize); fmt.Sprint(res) == DefaultConfig[BlockCacheSize] {
		t.Error("Unexpected result:", res)
		return
	}

	// The default config is not changed

	if DefaultConfig[BlockCacheSize] != "1000" {
		t.Error("Default config was changed")
		return
	}
}

func TestConfigErrors(t *testing.T) {

	if err := LoadConfigFile(invalidFileName); err == nil {
		t.Error("Loading an invalid file should fail")
		return
	}

	LoadDefaultConfig()

	Config[BlockSize] = "abc"

	defer func() {
		if r := recover(); r == nil {
			t.Error("Parsing an invalid number should panic")
		}
		LoadDefaultConfig()
	}()

	Int(BlockSize)
}
