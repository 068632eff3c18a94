// wingschema walks the console's parameter tree and writes the schema out
// twice: propmap.jsonl with one definition per line, and a regenerated
// propmap_data.go carrying the compiled-in name-to-id table.
package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dannydulai/libwing/cmd/internal/defjson"
	"github.com/dannydulai/libwing/wing"
)

// The console answers definition requests asynchronously; keeping a bounded
// number outstanding keeps its control task responsive.
const maxOutstanding = 100

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var host string
	var jsonPath, goPath string

	cmd := &cobra.Command{
		Use:          "wingschema",
		Short:        "Dump the parameter tree schema of a WING console",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(host, jsonPath, goPath)
		},
	}

	cmd.Flags().StringVarP(&host, "host", "t", "", "console address; discovered when empty")
	cmd.Flags().StringVar(&jsonPath, "json", "propmap.jsonl", "schema output path")
	cmd.Flags().StringVar(&goPath, "go", "propmap_data.go", "generated table output path")
	return cmd
}

type walker struct {
	ses      wing.Session
	children map[wing.NodeID][]wing.NodeID
	defs     map[wing.NodeID]wing.NodeDefinition
}

func run(host, jsonPath, goPath string) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ses, err := wing.Connect(host, wing.LoggingHooks(wing.NoOpLoggingHooks))
	if err != nil {
		return err
	}
	defer ses.Close()
	logger.Info("connected", zap.String("host", host))

	w := &walker{
		ses:      ses,
		children: make(map[wing.NodeID][]wing.NodeID),
		defs:     make(map[wing.NodeID]wing.NodeDefinition),
	}

	if err := w.walk(logger); err != nil {
		return err
	}
	logger.Info("schema retrieval complete", zap.Int("nodes", len(w.defs)))

	if err := w.writeSchema(jsonPath, goPath); err != nil {
		return err
	}
	logger.Info("schema files written",
		zap.String("json", jsonPath),
		zap.String("go", goPath))
	return nil
}

// walk requests definitions breadth-first in capped batches, reading events
// until every request has been answered and no node is left unexplored.
func (w *walker) walk(logger *zap.Logger) error {
	pending, ended := 1, 0
	if err := w.ses.RequestNodeDefinition(wing.Root); err != nil {
		return err
	}

	for {
		ev, err := w.ses.Read()
		if err != nil {
			return err
		}

		switch e := ev.(type) {
		case wing.NodeDefinitionEvent:
			def := e.Definition
			w.children[def.ParentID] = append(w.children[def.ParentID], def.ID)
			w.defs[def.ID] = def
			if len(w.defs)%100 == 0 {
				logger.Info("receiving definitions", zap.Int("nodes", len(w.defs)))
			}

		case wing.RequestEndEvent:
			ended++
			if ended < pending {
				continue
			}
			n, err := w.request(wing.Root)
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			pending += n

		case wing.NodeDataEvent:
		}
	}
}

// request issues definition requests for unexplored container nodes under
// nodeID, stopping after maxOutstanding.
func (w *walker) request(nodeID wing.NodeID) (int, error) {
	done := 0

	if _, visited := w.children[nodeID]; !visited {
		w.children[nodeID] = nil
		if err := w.ses.RequestNodeDefinition(nodeID); err != nil {
			return done, err
		}
		done++
		return done, nil
	}

	for _, child := range w.children[nodeID] {
		if w.defs[child].Type != wing.Node {
			continue
		}
		if _, visited := w.children[child]; visited {
			continue
		}
		w.children[child] = nil
		if err := w.ses.RequestNodeDefinition(child); err != nil {
			return done, err
		}
		done++
		if done >= maxOutstanding {
			return done, nil
		}
	}

	if done == 0 {
		for _, child := range w.children[nodeID] {
			if w.defs[child].Type != wing.Node {
				continue
			}
			n, err := w.request(child)
			done += n
			if err != nil {
				return done, err
			}
			if done >= maxOutstanding {
				return done, nil
			}
		}
	}

	return done, nil
}

// fullName assembles a node's slash-separated path by walking its parent
// chain; unnamed containers contribute their sibling index.
func (w *walker) fullName(def *wing.NodeDefinition) string {
	name := def.Name
	if name == "" {
		name = strconv.Itoa(int(def.Index))
	}
	n := def
	for n.ParentID != 0 {
		parent, ok := w.defs[n.ParentID]
		if !ok {
			return "???/" + name
		}
		n = &parent
		if n.Name == "" {
			name = strconv.Itoa(int(n.Index)) + "/" + name
		} else {
			name = n.Name + "/" + name
		}
	}
	return "/" + name
}

func (w *walker) writeSchema(jsonPath, goPath string) error {
	jsonFile, err := os.Create(jsonPath)
	if err != nil {
		return err
	}
	defer func() { _ = jsonFile.Close() }()
	jw := bufio.NewWriter(jsonFile)

	var blob []byte
	if blob, err = w.writeNode(jw, wing.Root); err != nil {
		return err
	}
	if err = jw.Flush(); err != nil {
		return err
	}

	return writeGeneratedTable(goPath, blob)
}

// writeNode emits the subtree under nodeID depth-first: one JSON line per
// node, and the node's table record appended to the returned blob.
func (w *walker) writeNode(jw *bufio.Writer, nodeID wing.NodeID) ([]byte, error) {
	var blob []byte

	if nodeID != wing.Root {
		def := w.defs[nodeID]
		fullname := w.fullName(&def)

		obj := defjson.Object(&def)
		obj["fullname"] = fullname
		line, err := json.Marshal(obj)
		if err != nil {
			return nil, err
		}
		if _, err = jw.Write(append(line, '\n')); err != nil {
			return nil, err
		}

		blob = binary.BigEndian.AppendUint32(blob, uint32(def.ID))
		blob = binary.BigEndian.AppendUint16(blob, uint16(len(fullname)))
		blob = append(blob, fullname...)
	}

	for _, child := range w.children[nodeID] {
		b, err := w.writeNode(jw, child)
		if err != nil {
			return nil, err
		}
		blob = append(blob, b...)
	}
	return blob, nil
}

func writeGeneratedTable(path string, blob []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "// Code generated by wingschema. DO NOT EDIT.\n\n")
	fmt.Fprintf(w, "package wing\n\n")
	fmt.Fprintf(w, "// propmapData holds the compiled-in property table as records of\n")
	fmt.Fprintf(w, "// (id int32 BE, length uint16 BE, name bytes).\n")
	fmt.Fprintf(w, "const propmapData = \"")
	for _, b := range blob {
		fmt.Fprintf(w, "\\x%02X", b)
	}
	fmt.Fprintf(w, "\"\n")
	return w.Flush()
}
