// wingprop reads, writes or describes a single console property addressed
// by name or numeric id.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dannydulai/libwing/cmd/internal/defjson"
	"github.com/dannydulai/libwing/wing"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var host string
	var minimal bool

	cmd := &cobra.Command{
		Use:   "wingprop property[=value|?]",
		Short: "Get, set or describe one console property",
		Long: `wingprop resolves a property name to its node id and performs one
operation against the console:

    wingprop /main/1/mute=1   set a property
    wingprop /main/1/mute     get a property's value
    wingprop /main/1/mute?    get a property's definition

Names resolve through the compiled-in property map; a plain decimal number
is taken as a literal node id.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(host, minimal, args[0])
		},
	}

	cmd.Flags().StringVarP(&host, "host", "t", "", "console address; discovered when empty")
	cmd.Flags().BoolVarP(&minimal, "minimal", "m", false, "print only the value or definition JSON")
	return cmd
}

type action int

const (
	actionGet action = iota
	actionSet
	actionDescribe
)

func run(host string, minimal bool, arg string) error {
	act := actionGet
	var value string

	propname := arg
	if strings.HasSuffix(arg, "?") {
		act = actionDescribe
		propname = strings.TrimSuffix(arg, "?")
	} else if parts := strings.SplitN(arg, "=", 2); len(parts) == 2 {
		act = actionSet
		propname, value = parts[0], parts[1]
	}

	propid, ok := wing.NameToID(propname)
	if !ok || propid == 0 {
		return errors.Errorf("invalid property name: %s", propname)
	}

	ses, err := wing.Connect(host, wing.LoggingHooks(wing.NoOpLoggingHooks))
	if err != nil {
		return err
	}
	defer ses.Close()

	switch act {
	case actionGet:
		if err := ses.RequestNodeData(propid); err != nil {
			return err
		}
		data, err := awaitData(ses, propid)
		if err != nil {
			return err
		}
		printValue(minimal, propname, data)
		return nil

	case actionDescribe:
		if err := ses.RequestNodeDefinition(propid); err != nil {
			return err
		}
		def, err := awaitDefinition(ses, propid)
		if err != nil {
			return err
		}
		return printDefinition(minimal, propname, def)

	case actionSet:
		// the definition tells us which typed write the node expects
		if err := ses.RequestNodeDefinition(propid); err != nil {
			return err
		}
		def, err := awaitDefinition(ses, propid)
		if err != nil {
			return err
		}
		return setTyped(ses, def, propname, value)
	}
	return nil
}

func awaitData(ses wing.Session, id wing.NodeID) (wing.NodeData, error) {
	for {
		ev, err := ses.Read()
		if err != nil {
			return wing.NodeData{}, err
		}
		if data, ok := ev.(wing.NodeDataEvent); ok && data.NodeID == id {
			return data.Data, nil
		}
	}
}

func awaitDefinition(ses wing.Session, id wing.NodeID) (wing.NodeDefinition, error) {
	for {
		ev, err := ses.Read()
		if err != nil {
			return wing.NodeDefinition{}, err
		}
		if def, ok := ev.(wing.NodeDefinitionEvent); ok && def.Definition.ID == id {
			return def.Definition, nil
		}
	}
}

func setTyped(ses wing.Session, def wing.NodeDefinition, propname, value string) error {
	switch def.Type {
	case wing.Node:
		return errors.Errorf("trying to set %s, but it's a node", propname)

	case wing.String, wing.StringEnum:
		return ses.SetString(def.ID, value)

	case wing.Integer:
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return errors.Errorf("property %s is an integer, but that was not passed: %s", propname, value)
		}
		return ses.SetInt(def.ID, int32(v))

	case wing.LinearFloat, wing.LogarithmicFloat, wing.FaderLevel, wing.FloatEnum:
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return errors.Errorf("property %s is a floating point number, but that was not passed: %s", propname, value)
		}
		return ses.SetFloat(def.ID, float32(v))
	}
	return errors.Errorf("unknown property type for %s", propname)
}

func printValue(minimal bool, propname string, data wing.NodeData) {
	if minimal {
		fmt.Println(data)
	} else {
		fmt.Printf("%s = %s\n", propname, data)
	}
}

func printDefinition(minimal bool, propname string, def wing.NodeDefinition) error {
	if minimal {
		b, err := json.Marshal(defjson.Object(&def))
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}

	fmt.Printf("%s <%08X>\n", propname, uint32(def.ID))
	fmt.Printf("  type: %s\n", def.Type)
	if def.Unit != wing.UnitNone {
		fmt.Printf("  unit: %s\n", def.Unit)
	}
	if def.ReadOnly {
		fmt.Printf("  read only\n")
	}
	if def.MinFloat != nil {
		fmt.Printf("  range: %g .. %g in %d steps\n", *def.MinFloat, *def.MaxFloat, *def.Steps)
	}
	if def.MinInt != nil {
		fmt.Printf("  range: %d .. %d\n", *def.MinInt, *def.MaxInt)
	}
	if def.MaxStringLen != nil {
		fmt.Printf("  max length: %d\n", *def.MaxStringLen)
	}
	for _, item := range def.StringEnum {
		fmt.Printf("  item: %s %s\n", item.Item, item.LongItem)
	}
	for _, item := range def.FloatEnum {
		fmt.Printf("  item: %g %s\n", item.Item, item.LongItem)
	}
	return nil
}
