package db

import (
	"database/sql"
	"log"

	_ "github.com/go-sql-driver/mysql"
)

func InitDB(dbURL string) *sql.DB {
	db, err := sql.Open("mysql", dbURL)
	if err != nil {
		log.Fatal("Failed to open database connection:", err)
	}

	if err := db.Ping(); err != nil {
		log.Fatal("Database is not responding:", err)
	}

	log.Println("Connected to database")
	return db
}

func RunMigrations(db *sql.DB) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(100) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			upi_handle VARCHAR(100) NOT NULL DEFAULT '',
			upi_pin_hash VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_upi_handle (upi_handle)
		);`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			account_number VARCHAR(20) NOT NULL UNIQUE,
			kind VARCHAR(20) NOT NULL DEFAULT 'savings',
			currency VARCHAR(3) NOT NULL DEFAULT 'INR',
			balance DECIMAL(20,2) NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_accounts_user (user_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			public_id VARCHAR(50) NOT NULL UNIQUE,
			account_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			amount DECIMAL(20,2) NOT NULL,
			currency VARCHAR(3) NOT NULL DEFAULT 'INR',
			type VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			remark VARCHAR(255) NOT NULL DEFAULT '',
			sender_upi VARCHAR(100) NOT NULL DEFAULT '',
			recipient_upi VARCHAR(100) NOT NULL DEFAULT '',
			transfer_id VARCHAR(50) NOT NULL DEFAULT '',
			transfer_type VARCHAR(10) NOT NULL DEFAULT '',
			counterparty_account VARCHAR(20) NOT NULL DEFAULT '',
			bank_reference VARCHAR(100) NOT NULL DEFAULT '',
			failure_reason VARCHAR(255) NOT NULL DEFAULT '',
			original_public_id VARCHAR(50) NOT NULL DEFAULT '',
			refunded BOOLEAN NOT NULL DEFAULT FALSE,
			is_demo BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_txn_account (account_id),
			INDEX idx_txn_user (user_id),
			INDEX idx_txn_transfer (transfer_id)
		);`,
		`CREATE TABLE IF NOT EXISTS money_requests (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			public_id VARCHAR(50) NOT NULL UNIQUE,
			from_user_id BIGINT NOT NULL,
			to_user_id BIGINT NOT NULL,
			from_upi VARCHAR(100) NOT NULL,
			to_upi VARCHAR(100) NOT NULL,
			amount DECIMAL(20,2) NOT NULL,
			note VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			expires_at DATETIME NOT NULL,
			responded_at DATETIME NULL,
			rejection_reason VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_req_from (from_user_id),
			INDEX idx_req_to (to_user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS bank_accounts (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			account_number VARCHAR(30) NOT NULL,
			bank_name VARCHAR(100) NOT NULL DEFAULT '',
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_bank_user (user_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			api_key VARCHAR(100) NOT NULL UNIQUE,
			merchant_id VARCHAR(100) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_api_keys_user (user_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			log.Fatal("Migration failed:", err)
		}
	}
	log.Println("Migrations completed")
}
