package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/fsbridge/pkg/bridge/protocol"
	"github.com/marmos91/fsbridge/pkg/config"
)

var rawMessageType = reflect.TypeOf(json.RawMessage(nil))

// protocolTypes are the request and reply bodies, keyed by the name they
// get under $defs.
var protocolTypes = map[string]any{
	protocol.ActionShowOpenFilePicker:  &protocol.OpenFilePickerRequest{},
	protocol.ActionShowDirectoryPicker: &protocol.DirectoryPickerRequest{},
	protocol.ActionShowSaveFilePicker:  &protocol.SaveFilePickerRequest{},
	protocol.ActionReadFile:            &protocol.EntryRequest{},
	protocol.ActionSaveFile:            &protocol.SaveFileRequest{},
	protocol.ActionCreateFile:          &protocol.CreateEntryRequest{},
	protocol.ActionCreateDirectory:     &protocol.CreateEntryRequest{},
	protocol.ActionRemoveEntry:         &protocol.RemoveEntryRequest{},
	protocol.ActionResolve:             &protocol.EntryRequest{},
	protocol.ActionGetDirectory:        &protocol.EntryRequest{},
	protocol.ActionDebugPrint:          &protocol.DebugPrintRequest{},
	"Handle":                           &protocol.Handle{},
	"FilePayload":                      &protocol.FilePayload{},
	"Reply":                            &protocol.Reply{},
}

func configSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "mapstructure",
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "fsbridge Configuration"
	schema.Description = "Configuration schema for the fsbridge server"
	return schema
}

func protocolSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
		// A reply result is any JSON value.
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == rawMessageType {
				return &jsonschema.Schema{}
			}
			return nil
		},
	}

	defs := jsonschema.Definitions{}
	for name, v := range protocolTypes {
		s := reflector.Reflect(v)
		s.Version = ""
		defs[name] = s
	}

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "fsbridge Protocol",
		Description: "Request bodies by action, plus the handle, file and reply shapes",
		Definitions: defs,
	}
}

func writeSchema(path string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("JSON schema written to %s\n", path)
	return nil
}

func main() {
	outDir := flag.String("out", ".", "Directory to write the schema files to")
	flag.Parse()

	if err := writeSchema(filepath.Join(*outDir, "config.schema.json"), configSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := writeSchema(filepath.Join(*outDir, "protocol.schema.json"), protocolSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
