// Command gdbxcli is a small smoke-test driver for the gdbx library: it
// opens (or creates) a database file, seeds a handful of documents, and
// runs one indexed query against them. It is not a server — gdbx is an
// embedded library, not a client/server database (see SPEC_FULL.md's
// Non-goals) — so there is no listener or connection handling here, just
// command-line plumbing in the same style as SyndrDB's own entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"gdbx"
	"gdbx/filter"
	"gdbx/keyenc"

	"go.uber.org/zap"
)

func printUsage() {
	log.Println("gdbxcli - exercise the gdbx embedded document database")
	log.Println("\nUsage:")
	log.Println("  gdbxcli [options]")
	log.Println("\nOptions:")
	flag.PrintDefaults()
}

func main() {
	dataFile := flag.String("datafile", "./gdbxcli.gdbx", "Path to the database file")
	reset := flag.Bool("reset", false, "Delete any existing database file before opening")
	minAge := flag.Int("min-age", 25, "Lower bound for the demo age query")
	verbose := flag.Bool("verbose", false, "Enable debug-level logging")
	flag.Usage = printUsage
	flag.Parse()

	zapCfg := zap.NewProductionConfig()
	if *verbose {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zl, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	if *reset {
		if err := os.Remove(*dataFile); err != nil && !os.IsNotExist(err) {
			log.Fatalf("failed to reset %s: %v", *dataFile, err)
		}
		os.Remove(*dataFile + ".wal")
	}

	db, err := gdbx.Open(*dataFile, gdbx.Options{Logger: logger})
	if err != nil {
		log.Fatalf("failed to open %s: %v", *dataFile, err)
	}
	defer db.Close()

	codec := personCodec{}
	ti := personTypeInfo{}

	db.Begin()
	if err := db.EnsureCollection(ti); err != nil {
		db.Abort()
		log.Fatalf("EnsureCollection: %v", err)
	}
	seed := []person{
		{Name: "Ada Lovelace", Age: 36},
		{Name: "Alan Turing", Age: 41},
		{Name: "Grace Hopper", Age: 85},
		{Name: "Alonzo Church", Age: 92},
	}
	for i := range seed {
		id, err := db.Insert("people", &seed[i], ti, codec)
		if err != nil {
			db.Abort()
			log.Fatalf("Insert: %v", err)
		}
		logger.Infow("inserted document", "id", id, "name", seed[i].Name)
	}
	if err := db.Commit(); err != nil {
		log.Fatalf("Commit: %v", err)
	}

	qb := db.Query("people", codec).
		Where("Age", keyenc.Int32, filter.GreaterThanOrEqual, keyenc.Value{Type: keyenc.Int32, I64: int64(*minAge)}).
		OrderBy("Age", false)
	explain, err := qb.Explain()
	if err != nil {
		log.Fatalf("Explain: %v", err)
	}
	fmt.Printf("query plan: %s\n", explain)

	results, err := qb.Execute(context.Background())
	if err != nil {
		log.Fatalf("Execute: %v", err)
	}
	for _, r := range results {
		out, _ := json.Marshal(r)
		fmt.Println(string(out))
	}
}

// person is the demo document type, registered with gdbx through
// personTypeInfo/personCodec below.
type person struct {
	ID   int32  `json:"id"`
	Name string `json:"name"`
	Age  int32  `json:"age"`
}

type personTypeInfo struct{}

func (personTypeInfo) CollectionName() string      { return "people" }
func (personTypeInfo) IndexedFields() []string     { return []string{"Age"} }
func (personTypeInfo) UniqueIndexFields() []string { return nil }
func (personTypeInfo) CompoundIndexes() [][]string { return nil }

func (personTypeInfo) ExtractIndexedFields(doc any, w gdbx.FieldWriter) {
	p := doc.(*person)
	w.WriteField("Age", keyenc.Value{Type: keyenc.Int32, I64: int64(p.Age)})
}

func (personTypeInfo) GetID(doc any) int32     { return doc.(*person).ID }
func (personTypeInfo) SetID(doc any, id int32) { doc.(*person).ID = id }

type personCodec struct{}

func (personCodec) Deserialize(data []byte) (any, error) {
	var p person
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (personCodec) Serialize(doc any) ([]byte, error) {
	return json.Marshal(doc.(*person))
}

func (personCodec) TryGetValue(data []byte, fieldName string) (keyenc.Value, bool) {
	var p person
	if err := json.Unmarshal(data, &p); err != nil {
		return keyenc.Value{}, false
	}
	switch fieldName {
	case "Id":
		return keyenc.Value{Type: keyenc.Int32, I64: int64(p.ID)}, true
	case "Name":
		return keyenc.Value{Type: keyenc.String, Str: p.Name}, true
	case "Age":
		return keyenc.Value{Type: keyenc.Int32, I64: int64(p.Age)}, true
	default:
		return keyenc.Value{}, false
	}
}

func (personCodec) TryGetValues(data []byte, fieldName string) ([]keyenc.Value, bool) {
	return nil, false
}
