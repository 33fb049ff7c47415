package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/veilcask/veilcask/internal/recordstore"
	"github.com/veilcask/veilcask/internal/vault"
)

func printRecord(rec *recordstore.Record) {
	bold := color.New(color.Bold)
	bold.Printf("%s\n", rec.Title)
	fmt.Printf("id:       %s\n", rec.ID)
	fmt.Printf("type:     %s\n", rec.Type)
	switch rec.Type {
	case recordstore.TypePassword:
		fmt.Printf("username: %s\n", rec.Username)
		fmt.Printf("password: %s\n", rec.Password)
		if rec.URL != "" {
			fmt.Printf("url:      %s\n", rec.URL)
		}
		if rec.Notes != "" {
			fmt.Printf("notes:    %s\n", rec.Notes)
		}
		if rec.TOTP != nil {
			fmt.Println("2fa:      configured")
		}
	case recordstore.TypeNote:
		fmt.Printf("content:\n%s\n", rec.Content)
	}
	if rec.Category != "" {
		fmt.Printf("category: %s\n", rec.Category)
	}
	fmt.Printf("modified: %s\n", time.UnixMilli(rec.Modified).Format(time.RFC3339))
}

func printListItems(items []vault.ListItem) {
	for _, it := range items {
		star := " "
		if it.Favorite {
			star = "*"
		}
		fmt.Printf("%s %s  %-8s %-20s %s\n", star, it.ID, it.Type, truncate(it.Title, 20), it.Category)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
