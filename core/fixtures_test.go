package core

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

type BaseFixture struct {
	ctx      context.Context
	db       *sql.DB
	t        *testing.T
	tearDown func()
}

func NewBaseFixture(t *testing.T) *BaseFixture {

	ctx, cancel := context.WithCancel(context.Background())

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}

	migrationfs := os.DirFS("../migrations")
	goose.SetBaseFS(migrationfs)

	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatal(err)
	}

	if err := goose.Up(db, "."); err != nil {
		t.Fatal(err)
	}

	return &BaseFixture{
		ctx: ctx,
		db:  db,
		t:   t,
		tearDown: func() {
			cancel()
			db.Close()
		},
	}
}

func seedAccounts(ctx context.Context, t *testing.T, store AccountStore, accounts ...Account) {
	for _, account := range accounts {
		if err := store.CreateAccount(ctx, account); err != nil {
			t.Fatalf("seeding account %s: %v", account.Username, err)
		}
	}
}

// seedFriendship establishes a friendship through the request workflow so
// both sides are written the way production writes them.
func seedFriendship(ctx context.Context, t *testing.T, store FriendStore, a, b string) {
	request, err := store.SendRequest(ctx, a, b)
	if err != nil {
		t.Fatalf("seeding friend request %s -> %s: %v", a, b, err)
	}
	if _, err := store.Respond(ctx, request.ID, RequestAccepted); err != nil {
		t.Fatalf("accepting friend request %s -> %s: %v", a, b, err)
	}
}

func seedMessages(ctx context.Context, t *testing.T, store MessageStore, inputs ...MessageCreateInput) []Message {
	messages := make([]Message, 0, len(inputs))
	for _, input := range inputs {
		message, err := store.CreateMessage(ctx, input)
		if err != nil {
			t.Fatalf("seeding message in %s: %v", input.Room, err)
		}
		messages = append(messages, *message)
	}
	return messages
}
