package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/babelduck/pkg/messages"
	"github.com/go-go-golems/babelduck/pkg/store"
)

func withStore(run func(s *store.SQLiteStore, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := store.NewSQLiteStore(viper.GetString("db"))
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		return run(s, cmd, args)
	}
}

func newChatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage stored chats",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List chats",
		RunE: withStore(func(s *store.SQLiteStore, cmd *cobra.Command, args []string) error {
			chats, err := s.ListChats()
			if err != nil {
				return err
			}
			for _, summary := range chats {
				fmt.Printf("%s\t%s\n", summary.ID, summary.Title)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "new [title]",
		Short: "Create a chat",
		RunE: withStore(func(s *store.SQLiteStore, cmd *cobra.Command, args []string) error {
			// An empty title gets a numbered default from the store.
			chatID, err := s.CreateChat(strings.Join(args, " "), []messages.Message{
				messages.NewSystemMessage("You are a helpful assistant."),
			})
			if err != nil {
				return err
			}
			fmt.Println(chatID)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <chat-id> <title>",
		Short: "Rename a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: withStore(func(s *store.SQLiteStore, cmd *cobra.Command, args []string) error {
			return s.RenameChat(args[0], strings.Join(args[1:], " "))
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <chat-id>",
		Short: "Delete a chat",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(s *store.SQLiteStore, cmd *cobra.Command, args []string) error {
			return s.DeleteChat(args[0])
		}),
	})

	return cmd
}
