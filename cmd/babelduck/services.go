package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/babelduck/pkg/intelligence"
	"github.com/go-go-golems/babelduck/pkg/store"
)

func newServicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "Manage shared OpenAI-compatible LLM service records",
	}

	var name, baseURL, apiKey, model string
	setCmd := &cobra.Command{
		Use:   "set <service-id>",
		Short: "Create or update a service record",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(s *store.SQLiteStore, cmd *cobra.Command, args []string) error {
			return s.SetLLMService(intelligence.ServiceRecord{
				ID: args[0],
				ServiceSettings: intelligence.ServiceSettings{
					Name:    name,
					BaseURL: baseURL,
					APIKey:  apiKey,
					Model:   model,
				},
			})
		}),
	}
	setCmd.Flags().StringVar(&name, "name", "", "Display name")
	setCmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL")
	setCmd.Flags().StringVar(&apiKey, "api-key", "", "API key")
	setCmd.Flags().StringVar(&model, "model", "", "Model name")

	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List service records",
		RunE: withStore(func(s *store.SQLiteStore, cmd *cobra.Command, args []string) error {
			records, err := s.ListLLMServices()
			if err != nil {
				return err
			}
			for _, record := range records {
				fmt.Printf("%s\t%s\t%s\t%s\n", record.ID, record.Name, record.BaseURL, record.Model)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <service-id>",
		Short: "Delete a service record",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(s *store.SQLiteStore, cmd *cobra.Command, args []string) error {
			return s.DeleteLLMService(args[0])
		}),
	})

	return cmd
}
