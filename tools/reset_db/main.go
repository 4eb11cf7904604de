package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"

	"hustconnect/config"

	"github.com/go-sql-driver/mysql"
)

// 子表在前
var tables = []string{
	"message",
	"conversation_participant",
	"conversation",
	"notification",
	"relationship_edge",
	"company",
	"user",
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "配置文件路径")
	flag.Parse()

	cfg := config.LoadConfig(*configPath)
	if cfg.Database.Driver != "" && cfg.Database.Driver != "mysql" {
		log.Fatalf("reset_db only supports mysql, got %q", cfg.Database.Driver)
	}

	dsn := mysql.NewConfig()
	dsn.User = cfg.Database.Username
	dsn.Passwd = cfg.Database.Password
	dsn.Net = "tcp"
	dsn.Addr = cfg.Database.Host + ":" + strconv.Itoa(cfg.Database.Port)
	dsn.DBName = cfg.Database.Database
	dsn.ParseTime = true
	dsn.Params = map[string]string{"charset": cfg.Database.Charset}

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Database connection test failed: %v", err)
	}

	fmt.Println("Database connected successfully")
	fmt.Printf("Database: %s\n", cfg.Database.Database)

	// Confirm
	fmt.Printf("\nWARNING: This operation will CLEAR ALL DATA in tables %v!\n", tables)
	fmt.Print("Type 'YES' to confirm: ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "YES" {
		fmt.Println("Operation cancelled")
		return
	}

	_, _ = db.Exec("SET FOREIGN_KEY_CHECKS=0")
	defer db.Exec("SET FOREIGN_KEY_CHECKS=1")

	for _, table := range tables {
		fmt.Printf("Clearing table %s... ", table)
		// TRUNCATE 同时重置自增ID
		if _, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE `%s`", table)); err != nil {
			var me *mysql.MySQLError
			if errors.As(err, &me) && me.Number == 1146 {
				fmt.Println("Skipped (table does not exist)")
				continue
			}
			fmt.Printf("Failed: %v\n", err)
		} else {
			fmt.Println("Success")
		}
	}

	fmt.Println("\nDatabase reset completed!")
	fmt.Println("All table data cleared, table structure preserved")
}
