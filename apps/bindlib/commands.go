package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ldsec/bindlib/pkg/binding"
	"github.com/ldsec/bindlib/pkg/library"
)

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <library>",
		Short: "Print the bindings of a library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, opts, func(reg *library.Registry) error {
				lib, err := reg.GetLibrary(args[0], false, false)
				if err != nil {
					return WrapExitError(ExitCommandError, "could not open library", err)
				}
				return opts.output(cmd).Success(newLibraryView(lib))
			})
		},
	}
}

// SetPointOptions holds flags for the set-point command.
type SetPointOptions struct {
	*RootOptions
	Anchor   string
	Position string
	Rotation string
}

// NewSetPointCommand creates the set-point command.
func NewSetPointCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetPointOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set-point <library> <key>",
		Short: "Bind an object to a persistent anchor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := binding.PointRecord{AnchorID: opts.Anchor}
			if err := parseFloats(opts.Position, rec.Position[:]); err != nil {
				return WrapExitError(ExitCommandError, "invalid --pos", err)
			}
			if err := parseFloats(opts.Rotation, rec.Orientation[:]); err != nil {
				return WrapExitError(ExitCommandError, "invalid --rot", err)
			}

			return withRegistry(cmd, opts.RootOptions, func(reg *library.Registry) error {
				lib, err := reg.GetLibrary(args[0], false, false)
				if err != nil {
					return WrapExitError(ExitCommandError, "could not open library", err)
				}
				lib.SetPoint(args[1], rec)
				commit(reg, lib)
				return opts.output(cmd).Success(changeView{Action: "set", Library: lib.ID(), Kind: binding.KindPoint.String(), Key: args[1]})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Anchor, "anchor", "", "identifier of the persistent anchor")
	cmd.Flags().StringVar(&opts.Position, "pos", "0,0,0", "position x,y,z in the anchor frame")
	cmd.Flags().StringVar(&opts.Rotation, "rot", "0,0,0,1", "orientation quaternion x,y,z,w in the anchor frame")
	_ = cmd.MarkFlagRequired("anchor")

	return cmd
}

// SetSceneOptions holds flags for the set-scene command.
type SetSceneOptions struct {
	*RootOptions
	Points []string
}

// NewSetSceneCommand creates the set-scene command.
func NewSetSceneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetSceneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set-scene <library> <key>",
		Short: "Bind an object to a scene made of existing point bindings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, opts.RootOptions, func(reg *library.Registry) error {
				lib, err := reg.GetLibrary(args[0], false, false)
				if err != nil {
					return WrapExitError(ExitCommandError, "could not open library", err)
				}

				var scene binding.SceneRecord
				for _, key := range opts.Points {
					p, ok := lib.TryGetPoint(key)
					if !ok {
						return NewExitError(ExitFailure, fmt.Sprintf("point binding %q not found in library %q", key, lib.ID()))
					}
					scene.Points = append(scene.Points, p)
				}
				lib.SetScene(args[1], scene)
				commit(reg, lib)
				return opts.output(cmd).Success(changeView{Action: "set", Library: lib.ID(), Kind: binding.KindScene.String(), Key: args[1]})
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.Points, "points", nil, "keys of the point bindings forming the scene")
	_ = cmd.MarkFlagRequired("points")

	return cmd
}

// RemoveOptions holds flags for the remove command.
type RemoveOptions struct {
	*RootOptions
	Kind string
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RemoveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "remove <library> <key>",
		Short: "Remove a binding from a library",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := binding.ParseKind(opts.Kind)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --kind", err)
			}

			return withRegistry(cmd, opts.RootOptions, func(reg *library.Registry) error {
				lib, err := reg.GetLibrary(args[0], false, false)
				if err != nil {
					return WrapExitError(ExitCommandError, "could not open library", err)
				}

				key := args[1]
				var found bool
				switch kind {
				case binding.KindPoint:
					if _, found = lib.TryGetPoint(key); found {
						lib.RemovePoint(key)
					}
				case binding.KindScene:
					if _, found = lib.TryGetScene(key); found {
						lib.RemoveScene(key)
					}
				}
				if !found {
					return NewExitError(ExitFailure, fmt.Sprintf("%s binding %q not found in library %q", kind, key, lib.ID()))
				}
				commit(reg, lib)
				return opts.output(cmd).Success(changeView{Action: "removed", Library: lib.ID(), Kind: kind.String(), Key: key})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", binding.KindPoint.String(), "kind of the binding (point|scene)")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <library>",
		Short: "Delete a library and its stored data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, opts, func(reg *library.Registry) error {
				if err := reg.DeleteLibrary(args[0]); err != nil {
					return WrapExitError(ExitCommandError, "could not delete library", err)
				}
				return opts.output(cmd).Success(changeView{Action: "deleted", Library: library.NormalizeID(args[0])})
			})
		},
	}
}

// parseFloats parses a comma-separated list of exactly len(dst) numbers into dst.
// commit saves lib right away. The shutdown hook may already have fired when
// a signal cancels the command, so a mutation can't rely on it.
func commit(reg *library.Registry, lib library.Library) {
	reg.SaveLibrary(lib.ID(), false)
}

func parseFloats(s string, dst []float32) error {
	fields := strings.Split(s, ",")
	if len(fields) != len(dst) {
		return fmt.Errorf("expected %d comma-separated numbers, got %q", len(dst), s)
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return err
		}
		dst[i] = float32(v)
	}
	return nil
}
