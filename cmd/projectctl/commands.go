package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"projectstore/internal/gdrive"
	"projectstore/internal/project"
	"projectstore/internal/storage"

	"github.com/spf13/cobra"
)

func newProvidersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List storage providers and what they support",
		Args:  cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION\tCAPABILITIES")
			for _, p := range e.registry.List() {
				caps := "disabled"
				if !p.Disabled {
					ops := p.CreateOperations(storage.Dependencies{User: e.user})
					caps = ""
					for _, c := range storage.AllCapabilities {
						if ops.Supports(c) {
							if caps != "" {
								caps += ","
							}
							caps += string(c)
						}
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.InternalName, p.Name, caps)
			}
			return w.Flush()
		}),
	}
}

// openAndWrite opens fm and writes the project JSON to out, or stdout.
func openAndWrite(cmd *cobra.Command, e *env, provider string, ops storage.Operations, fm storage.FileMetadata, out string) error {
	result, err := ops.Open(cmd.Context(), fm, func(progress float64, message string) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%3.0f%%] %s\n", progress*100, message)
	})
	if err != nil {
		return fmt.Errorf("%w\n%s", err, storage.OpenErrorMessage(err))
	}

	data, err := result.Content.Serialize()
	if err != nil {
		return err
	}
	if out == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		err = os.WriteFile(out, data, 0o644)
	}
	if err != nil {
		return err
	}

	e.remember(cmd.Context(), provider, fm, result.Content.Name())
	return nil
}

func newOpenCmd(opts *options) *cobra.Command {
	var version, out string
	var fromAutoSave bool

	cmd := &cobra.Command{
		Use:   "open <file-identifier>",
		Short: "Open a project and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			ops, err := e.operations(opts.provider)
			if err != nil {
				return err
			}

			fm := storage.FileMetadata{FileIdentifier: args[0], Version: version}
			if fromAutoSave {
				autoSave, ok := storage.AsAutoSave(ops)
				if !ok {
					return storage.ErrUnsupported
				}
				fm = autoSave.GetAutoSave(fm)
			}
			return openAndWrite(cmd, e, opts.provider, ops, fm, out)
		}),
	}
	cmd.Flags().StringVar(&version, "version", "", "open a specific version")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the project to this file")
	cmd.Flags().BoolVar(&fromAutoSave, "autosave", false, "open the local autosave instead")
	return cmd
}

func newPickCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Pick a file in the provider and open it",
		Args:  cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			ops, err := e.operations(opts.provider)
			if err != nil {
				return err
			}
			picker, ok := storage.AsPickerOpener(ops)
			if !ok {
				return fmt.Errorf("%s: %w", opts.provider, storage.ErrUnsupported)
			}
			fm, err := picker.OpenWithPicker(cmd.Context())
			if err != nil {
				return err
			}
			return openAndWrite(cmd, e, opts.provider, ops, *fm, out)
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the project to this file")
	return cmd
}

func readProject(path string) (project.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	return project.Parse(data)
}

func newSaveCmd(opts *options) *cobra.Command {
	var fileID, version string
	cmd := &cobra.Command{
		Use:   "save <project.json>",
		Short: "Save a project over its existing location",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			p, err := readProject(args[0])
			if err != nil {
				return err
			}
			ops, err := e.operations(opts.provider)
			if err != nil {
				return err
			}
			result, err := ops.SaveProject(cmd.Context(), p, storage.FileMetadata{FileIdentifier: fileID, Version: version})
			if err != nil {
				return err
			}
			if !result.WasSaved {
				fmt.Fprintln(cmd.ErrOrStderr(), "Project was not saved.")
			}
			return printJSON(cmd.OutOrStdout(), result)
		}),
	}
	cmd.Flags().StringVar(&fileID, "id", "", "file identifier to save to")
	cmd.Flags().StringVar(&version, "version", "", "version the project was opened at")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newSaveAsCmd(opts *options) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "save-as <project.json>",
		Short: "Save a project to a new location",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			p, err := readProject(args[0])
			if err != nil {
				return err
			}
			ops, err := e.operations(opts.provider)
			if err != nil {
				return err
			}

			var location *storage.SaveAsLocation
			if name != "" && opts.provider != gdrive.InternalName {
				location = &storage.SaveAsLocation{Name: name}
			} else {
				location, err = ops.ChooseSaveProjectAsLocation(cmd.Context(), p, nil)
				if err != nil {
					return err
				}
			}

			result, err := ops.SaveProjectAs(cmd.Context(), p, location, storage.SaveAsOptions{})
			if err != nil {
				return err
			}
			if result.WasSaved && result.FileMetadata != nil {
				e.remember(cmd.Context(), opts.provider, *result.FileMetadata, p.Name())
			}
			return printJSON(cmd.OutOrStdout(), result)
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "name of the new project (asked when omitted)")
	return cmd
}

func newPropertiesCmd(opts *options) *cobra.Command {
	var fileID, name, description string
	cmd := &cobra.Command{
		Use:   "properties <project.json>",
		Short: "Change a project's name or description and update the file",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			p, err := readProject(args[0])
			if err != nil {
				return err
			}
			ops, err := e.operations(opts.provider)
			if err != nil {
				return err
			}
			changer, ok := storage.AsPropertyChanger(ops)
			if !ok {
				return fmt.Errorf("%s: %w", opts.provider, storage.ErrUnsupported)
			}

			var props storage.ProjectProperties
			if cmd.Flags().Changed("name") {
				props.Name = &name
			}
			if cmd.Flags().Changed("description") {
				props.Description = &description
			}
			if !changer.ChangeProjectProperty(cmd.Context(), p, storage.FileMetadata{FileIdentifier: fileID}, props) {
				return fmt.Errorf("project properties could not be changed")
			}

			data, err := p.Serialize()
			if err != nil {
				return err
			}
			return os.WriteFile(args[0], data, 0o644)
		}),
	}
	cmd.Flags().StringVar(&fileID, "id", "", "file identifier of the project")
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your projects in the provider",
		Args:  cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			ops, err := e.operations(opts.provider)
			if err != nil {
				return err
			}
			lister, ok := storage.AsLister(ops)
			if !ok {
				return fmt.Errorf("%s: %w", opts.provider, storage.ErrUnsupported)
			}
			projects, err := lister.ListProjects(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVERSION\tNAME")
			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.FileMetadata.FileIdentifier, p.FileMetadata.Version, p.Name)
			}
			return w.Flush()
		}),
	}
}

func newResolveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <key=value>...",
		Short: "Find the project launch arguments point at",
		Args:  cobra.MinimumNArgs(1),
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			values := make(map[string]string, len(args))
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok || key == "" {
					return fmt.Errorf("argument %q is not key=value", arg)
				}
				values[key] = value
			}

			p, fm, ok := e.registry.FileMetadataFromAppArguments(values)
			if !ok {
				return fmt.Errorf("no storage provider recognizes these arguments")
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"storageProviderName": p.InternalName,
				"fileMetadata":        fm,
			})
		}),
	}
}
