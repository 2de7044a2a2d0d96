package query

import (
	"reflect"
	"strings"
	"testing"
)

func TestCompileDefaultsToBaseTable(t *testing.T) {
	page, count, err := Compile(NewPipeline("videos"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if page.SQL != "SELECT videos.* FROM videos" {
		t.Fatalf("unexpected page sql: %s", page.SQL)
	}
	if count.SQL != "SELECT count(*) FROM videos" {
		t.Fatalf("unexpected count sql: %s", count.SQL)
	}
}

func TestCompileFullPipeline(t *testing.T) {
	p := NewPipeline("videos",
		Join{Table: "users", Alias: "u", LocalColumn: "videos.owner_id", ForeignColumn: "u.id"},
		Project{Columns: []Column{
			{Expr: "videos.id"},
			{Expr: "videos.title"},
			{Expr: "u.username", Alias: "owner_username"},
		}},
		Match{Cond: Eq{Column: "u.id", Value: "user-1"}},
		Match{Cond: IsTrue{Column: "videos.is_published"}},
		Sort{Column: "videos.created_at", Descending: true},
		Skip(20),
		Limit(10),
	)

	page, count, err := Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	wantPage := "SELECT videos.id, videos.title, u.username AS owner_username" +
		" FROM videos JOIN users AS u ON videos.owner_id = u.id" +
		" WHERE u.id = $1 AND videos.is_published" +
		" ORDER BY videos.created_at DESC LIMIT 10 OFFSET 20"
	if page.SQL != wantPage {
		t.Fatalf("page sql:\n got %s\nwant %s", page.SQL, wantPage)
	}

	wantCount := "SELECT count(*) FROM videos JOIN users AS u ON videos.owner_id = u.id" +
		" WHERE u.id = $1 AND videos.is_published"
	if count.SQL != wantCount {
		t.Fatalf("count sql:\n got %s\nwant %s", count.SQL, wantCount)
	}

	if !reflect.DeepEqual(page.Args, []any{"user-1"}) || !reflect.DeepEqual(count.Args, page.Args) {
		t.Fatalf("expected matching args, page=%v count=%v", page.Args, count.Args)
	}
}

func TestCompileSharesWhereBetweenPageAndCount(t *testing.T) {
	p := NewPipeline("videos",
		Match{Cond: TextSearch{Columns: []string{"videos.title", "videos.description"}, Term: "go"}},
	)

	page, count, err := Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	wherePage := page.SQL[strings.Index(page.SQL, " WHERE "):]
	whereCount := count.SQL[strings.Index(count.SQL, " WHERE "):]
	if wherePage != whereCount {
		t.Fatalf("where clauses diverge:\npage  %s\ncount %s", wherePage, whereCount)
	}
	if !reflect.DeepEqual(page.Args, count.Args) {
		t.Fatalf("args diverge: page=%v count=%v", page.Args, count.Args)
	}
}

func TestCompileTextSearchEscapesLikeMetacharacters(t *testing.T) {
	p := NewPipeline("videos",
		Match{Cond: TextSearch{Columns: []string{"videos.title"}, Term: `100%_real\deal`}},
	)

	page, _, err := Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if len(page.Args) != 1 {
		t.Fatalf("expected one argument, got %v", page.Args)
	}
	want := `%100\%\_real\\deal%`
	if page.Args[0] != want {
		t.Fatalf("got %q, want %q", page.Args[0], want)
	}
}

func TestCompileAddFieldBindsPlaceholders(t *testing.T) {
	p := NewPipeline("playlists",
		AddField{
			Alias: "total_videos",
			Expr:  "SELECT count(*) FROM playlist_videos pv WHERE pv.playlist_id = playlists.id AND pv.position >= ?",
			Args:  []any{1},
		},
		Match{Cond: Eq{Column: "playlists.owner_id", Value: "user-1"}},
	)

	page, count, err := Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	// Conditions bind before select-list placeholders.
	if !strings.Contains(page.SQL, "playlists.owner_id = $1") {
		t.Fatalf("expected owner condition on $1: %s", page.SQL)
	}
	if !strings.Contains(page.SQL, "pv.position >= $2) AS total_videos") {
		t.Fatalf("expected computed field on $2: %s", page.SQL)
	}
	if !reflect.DeepEqual(page.Args, []any{"user-1", 1}) {
		t.Fatalf("unexpected page args: %v", page.Args)
	}
	if !reflect.DeepEqual(count.Args, []any{"user-1"}) {
		t.Fatalf("count should not carry select-list args: %v", count.Args)
	}
}

func TestCompileOrCondition(t *testing.T) {
	p := NewPipeline("likes",
		Match{Cond: Or{Conds: []Cond{
			NotNull{Column: "likes.video_id"},
			NotNull{Column: "likes.tweet_id"},
		}}},
	)

	page, _, err := Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if !strings.Contains(page.SQL, "(likes.video_id IS NOT NULL OR likes.tweet_id IS NOT NULL)") {
		t.Fatalf("unexpected sql: %s", page.SQL)
	}
}

func TestCompileRejectsUnknownAlias(t *testing.T) {
	p := NewPipeline("videos",
		Match{Cond: Eq{Column: "u.id", Value: "user-1"}},
		Join{Table: "users", Alias: "u", LocalColumn: "videos.owner_id", ForeignColumn: "u.id"},
	)

	if _, _, err := Compile(p); err == nil {
		t.Fatal("expected error for condition referencing alias before its join")
	}
}

func TestCompileRejectsEmptyPipeline(t *testing.T) {
	if _, _, err := Compile(nil); err == nil {
		t.Fatal("expected error for nil pipeline")
	}
	if _, _, err := Compile(&Pipeline{}); err == nil {
		t.Fatal("expected error for pipeline without base table")
	}
}
