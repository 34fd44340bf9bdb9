// Command migrate applies the database schema. Statements are idempotent so
// the command can run on every deploy.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

var statements = []string{
	`create extension if not exists pgcrypto`,

	`create table if not exists users (
		id uuid primary key default gen_random_uuid(),
		email text not null unique,
		name text,
		avatar_url text,
		plan text not null default 'free',
		locale_pref text,
		google_sub text,
		properties jsonb not null default '{}'::jsonb,
		created_at timestamptz not null default now(),
		updated_at timestamptz not null default now()
	)`,

	`create table if not exists jobs (
		id uuid primary key default gen_random_uuid(),
		user_id uuid not null references users(id) on delete cascade,
		type text not null,
		status text not null default 'QUEUED',
		prompt_json jsonb not null default '{}'::jsonb,
		result_json jsonb,
		quantity int not null default 1,
		aspect_ratio text,
		provider text,
		error_kind text,
		error_message text,
		created_at timestamptz not null default now(),
		updated_at timestamptz not null default now()
	)`,
	`create index if not exists idx_jobs_status_created on jobs (status, created_at)`,
	`create index if not exists idx_jobs_user on jobs (user_id, created_at desc)`,

	`create table if not exists assets (
		id uuid primary key default gen_random_uuid(),
		user_id uuid not null references users(id) on delete cascade,
		kind text not null,
		job_id uuid references jobs(id) on delete set null,
		storage_key text not null,
		mime text not null,
		bytes bigint not null default 0,
		width int not null default 0,
		height int not null default 0,
		aspect_ratio text,
		properties jsonb not null default '{}'::jsonb,
		created_at timestamptz not null default now(),
		updated_at timestamptz not null default now()
	)`,
	`create index if not exists idx_assets_user on assets (user_id, created_at desc)`,
	`create index if not exists idx_assets_job on assets (job_id)`,

	`create table if not exists usage_events (
		id uuid primary key default gen_random_uuid(),
		user_id uuid not null,
		job_id uuid,
		event_type text not null,
		success boolean not null default true,
		latency_ms int not null default 0,
		properties jsonb not null default '{}'::jsonb,
		created_at timestamptz not null default now()
	)`,
	`create index if not exists idx_usage_events_type_created on usage_events (event_type, created_at desc)`,

	`create table if not exists checkout_intents (
		id uuid primary key default gen_random_uuid(),
		user_id uuid not null references users(id) on delete cascade,
		plan text not null,
		amount_int bigint not null default 0,
		currency text not null default 'USD',
		status text not null default 'PENDING',
		reference text not null unique,
		created_at timestamptz not null default now(),
		updated_at timestamptz not null default now()
	)`,

	`create table if not exists integration_tokens (
		id uuid primary key default gen_random_uuid(),
		provider text not null unique,
		token text not null,
		properties jsonb not null default '{}'::jsonb,
		created_at timestamptz not null default now(),
		updated_at timestamptz not null default now()
	)`,

	`create or replace view vw_stats_summary as
	select
		(select count(*) from users) as total_users,
		(select count(*) from assets where kind = 'image' and job_id is not null) as image_generated,
		(select count(*) from assets where kind = 'video') as video_generated,
		(select count(*) from usage_events where success) as request_success,
		(select count(*) from usage_events where not success) as request_fail,
		(select count(*) from assets where kind = 'image' and job_id is not null and created_at > now() - interval '24 hours') as image_last24,
		(select count(*) from assets where kind = 'video' and created_at > now() - interval '24 hours') as video_last24`,
}

func main() {
	var timeout time.Duration
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "overall migration timeout")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetConnMaxLifetime(timeout)
	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "ping database: %v\n", err)
		os.Exit(1)
	}

	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			fmt.Fprintf(os.Stderr, "statement %d failed: %v\n", i+1, err)
			os.Exit(1)
		}
	}
	fmt.Printf("schema up to date (%d statements)\n", len(statements))
}
