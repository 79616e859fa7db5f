package main

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}

// bindFlags binds config keys to flags by name. Commands call it when they
// run, since run and list define flags for the same keys.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("no flag --%s for %s", name, key)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

var scenarioFlagKeys = map[string]string{
	"run.files":     "file",
	"run.grep":      "grep",
	"run.tags":      "tag",
	"run.table_dir": "table-dir",
}

// scenarioFlags are the selection flags run and list share.
func scenarioFlags(fs *pflag.FlagSet) {
	fs.StringSlice("file", nil, "only scenarios from these files (checkboxes, keyboard, interference, or a table path)")
	fs.String("grep", "", "only scenarios whose \"file › name\" matches this regexp")
	fs.StringSlice("tag", nil, "only scenarios carrying one of these tags (@smoke or smoke)")
	fs.String("table-dir", "", "directory of YAML scenario tables")
}
