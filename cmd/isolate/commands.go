package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-isolate/domain"
	"github.com/wippyai/wasm-isolate/engine"
	"github.com/wippyai/wasm-isolate/errors"
	"github.com/wippyai/wasm-isolate/linker"
	"github.com/wippyai/wasm-isolate/remote"
	"github.com/wippyai/wasm-isolate/runtime"
)

var loadCmd = &cobra.Command{
	Use:   "load <module.wasm>",
	Short: "Load a module and print its descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols, _ := cmd.Flags().GetString("symbols")
		return withContext(cmd.Context(), args[0], func(c *runtime.Context, cfg *Config, s linker.Strategy) error {
			desc, err := c.LoadModule(cmd.Context(), s, args[0], symbols)
			if err != nil {
				return err
			}
			return printDescriptors(cmd.OutOrStdout(), cfg.Output.JSON, []linker.Descriptor{desc})
		})
	},
}

var refsCmd = &cobra.Command{
	Use:   "refs <module.wasm>",
	Short: "Load a module with everything it imports and print the descriptors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd.Context(), args[0], func(c *runtime.Context, cfg *Config, s linker.Strategy) error {
			descs, err := c.LoadModuleWithReferences(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			return printDescriptors(cmd.OutOrStdout(), cfg.Output.JSON, descs)
		})
	},
}

var modulesCmd = &cobra.Command{
	Use:   "modules <module.wasm>...",
	Short: "Load modules into one context and list everything it holds",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContext(cmd.Context(), args[0], func(c *runtime.Context, cfg *Config, s linker.Strategy) error {
			for _, p := range args {
				if _, err := c.LoadModuleWithReferences(cmd.Context(), s, p); err != nil {
					return err
				}
			}
			mods, err := c.Modules(cmd.Context())
			if err != nil {
				return err
			}
			return printDescriptors(cmd.OutOrStdout(), cfg.Output.JSON, mods)
		})
	},
}

var callCmd = &cobra.Command{
	Use:   "call <module.wasm> <function> [args...]",
	Short: "Load a module with its imports and call one of its exports",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withContext(ctx, args[0], func(c *runtime.Context, cfg *Config, s linker.Strategy) error {
			descs, err := c.LoadModuleWithReferences(ctx, s, args[0])
			if err != nil {
				return err
			}
			module := descs[0].Name().Name
			exports, err := exportsOf(ctx, c, module)
			if err != nil {
				return err
			}
			fn, ok := findExport(exports, args[1])
			if !ok {
				return errors.NotFound(errors.PhaseInvoke, "function", module+"."+args[1])
			}
			params, err := encodeParams(fn.Params, args[2:])
			if err != nil {
				return err
			}
			res, err := c.Call(ctx, module, fn.Name, params...)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), cfg.Output.JSON, fn, res)
		})
	},
}

func init() {
	loadCmd.Flags().String("symbols", "", "symbol file of custom sections, used by the bytes strategy")
}

// exportsOf lists the exported functions of a loaded module, collected
// inside the context's domain.
func exportsOf(ctx context.Context, c *runtime.Context, module string) ([]engine.Export, error) {
	d, err := c.Domain()
	if err != nil {
		return nil, err
	}
	w, err := domain.Borrow(d)
	if err != nil {
		return nil, err
	}
	defer w.Close(ctx)

	return remote.Invoke1(ctx, w, func(ctx context.Context, name string) ([]engine.Export, error) {
		rec, ok := domain.Current(ctx).Lookup(name)
		if !ok {
			return nil, errors.NotFound(errors.PhaseInvoke, "module", name)
		}
		return engine.Exports(rec.Module), nil
	}, module)
}

func findExport(exports []engine.Export, name string) (engine.Export, bool) {
	for _, x := range exports {
		if x.Name == name {
			return x, true
		}
	}
	return engine.Export{}, false
}

// displayPath shortens p relative to the working directory when p lies
// below it.
func displayPath(p string) string {
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	if rel, err := filepath.Rel(wd, p); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return p
}

func describe(d linker.Descriptor) string {
	if d.IsDynamic() {
		return fmt.Sprintf("%s (host)", d.Name().Name)
	}
	return fmt.Sprintf("%s [%s]", d.Name().FullName(), displayPath(d.Path()))
}
