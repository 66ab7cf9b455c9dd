package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/sahilchouksey/agent-chat-api/database"
	"github.com/sahilchouksey/agent-chat-api/services"
)

func main() {
	userID := flag.String("user", "", "user id to provision the inbox and default assistants for")
	flag.Parse()

	if *userID == "" {
		log.Fatal("Usage: seed -user <user-id>")
	}

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Initialize database connection using GORM
	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	gormDB := store.GetDB().(*gorm.DB)

	separator := strings.Repeat("=", 60)
	fmt.Println(separator)
	fmt.Println("Agent Chat API - Default Session Seeding")
	fmt.Println(separator)
	fmt.Println()

	agents := services.NewAgentService(gormDB, *userID)

	inbox, err := agents.CreateInbox()
	if err != nil {
		log.Fatalf("❌ Inbox seeding failed: %v", err)
	}
	fmt.Printf("Inbox session: %s\n", inbox.ID)

	assistants, err := agents.CreateDefaultAssistants()
	if err != nil {
		log.Fatalf("❌ Default assistant seeding failed: %v", err)
	}
	for _, sess := range assistants {
		slug := ""
		if sess.Slug != nil {
			slug = *sess.Slug
		}
		fmt.Printf("Assistant session: %s (%s)\n", sess.ID, slug)
	}

	fmt.Println()
	fmt.Println(separator)
	fmt.Println("🎉 Seeding completed successfully!")
	fmt.Println(separator)
	fmt.Println()
	fmt.Println("Default assistant overrides come from DEFAULT_AGENT_*,")
	fmt.Println("READINESS_PLAN_AGENT_*, CHECKPOINT_AGENT_* and QA_AGENT_*")
	fmt.Println("environment variables. Seeding is idempotent.")
	fmt.Println()
}
