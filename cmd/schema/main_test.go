package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildSchemaDescribesSaveState(t *testing.T) {
	data, err := json.Marshal(buildSchema())
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	text := string(data)
	for _, want := range []string{`"SaveState"`, `"savedAt"`, `"unspawnedEnemies"`, `"Grid TD save file"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("schema is missing %s", want)
		}
	}
}

func TestWriteSchemaCreatesDirectories(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "save.schema.json")
	if err := writeSchema(out, buildSchema()); err != nil {
		t.Fatalf("writeSchema: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("schema file is not valid json")
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away")
	}
}
