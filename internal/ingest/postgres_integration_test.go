package ingest_test

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/prepnexus/qbank/internal/ingest"
	"github.com/prepnexus/qbank/internal/platform/database"
	"github.com/prepnexus/qbank/internal/taxonomy"
)

func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "pgvector/pgvector:pg16",
		tcpostgres.WithDatabase("qbank"),
		tcpostgres.WithUsername("qbank"),
		tcpostgres.WithPassword("qbank"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}

	db, err := database.New(ctx, url, 5, 1)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return db
}

func seedIntegrationTopics(t *testing.T, store taxonomy.Store) {
	t.Helper()
	ctx := context.Background()
	topics := []taxonomy.Topic{
		{ID: "exam-gs", Name: "General Studies", Slug: "general-studies", Level: 1,
			AncestryPath: "exam-gs", TopicType: taxonomy.TypeCanonical},
		{ID: "subj-polity", Name: "Polity", Slug: "polity", Level: 2, PrimaryParentID: "exam-gs",
			AncestryPath: "exam-gs>subj-polity", TopicType: taxonomy.TypeCanonical},
		{ID: "t-141", Name: "Separation of Powers", Slug: "separation-of-powers", Level: 3,
			PrimaryParentID: "subj-polity", AncestryPath: "exam-gs>subj-polity>t-141",
			TopicType: taxonomy.TypeCanonical},
		{ID: "t-142", Name: "Independence of Judiciary", Slug: "independence-of-judiciary", Level: 3,
			PrimaryParentID: "subj-polity", AncestryPath: "exam-gs>subj-polity>t-142",
			TopicType: taxonomy.TypeCanonical},
	}
	for _, tp := range topics {
		if err := store.CreateTopic(ctx, tp); err != nil {
			t.Fatalf("CreateTopic(%s) error = %v", tp.ID, err)
		}
	}
}

func countRows(t *testing.T, db *database.DB, table string) int {
	t.Helper()
	var n int
	if err := db.Pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

func TestImporter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	db := startPostgres(t)
	store, err := taxonomy.NewPostgresStore(db.Pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	seedIntegrationTopics(t, store)

	im := ingest.NewImporter(ingest.PoolBeginner{Pool: db.Pool})

	t.Run("commits question, links and demands", func(t *testing.T) {
		p := params()
		p.SecondaryTopicIDs = []string{"t-141"}

		id, err := im.Import(ctx, p)
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if id == "" {
			t.Fatal("Import() returned empty id")
		}

		if n := countRows(t, db, "questions"); n != 1 {
			t.Errorf("questions rows = %d, want 1", n)
		}
		if n := countRows(t, db, "questions_topics"); n != 2 {
			t.Errorf("questions_topics rows = %d, want 2", n)
		}
		if n := countRows(t, db, "questions_demands"); n != 2 {
			t.Errorf("questions_demands rows = %d, want 2", n)
		}

		var role string
		err = db.Pool.QueryRow(ctx,
			`SELECT role FROM questions_topics WHERE question_id = $1::uuid AND topic_id = 't-142'`,
			id,
		).Scan(&role)
		if err != nil || role != "PRIMARY" {
			t.Errorf("primary link role = (%q, %v), want PRIMARY", role, err)
		}
	})

	t.Run("rolls back everything on a bad topic link", func(t *testing.T) {
		before := countRows(t, db, "questions")

		p := params()
		p.SecondaryTopicIDs = []string{"t-does-not-exist"}

		if _, err := im.Import(ctx, p); err == nil {
			t.Fatal("Import() should fail on a foreign key violation")
		}
		// The question row inserted earlier in the transaction must be gone.
		if after := countRows(t, db, "questions"); after != before {
			t.Errorf("questions rows = %d, want %d (all-or-nothing)", after, before)
		}
	})

	t.Run("batch runner end to end", func(t *testing.T) {
		runner := ingest.NewRunner(ingest.RunnerConfig{Importer: im, Topics: store})

		good := validDraft()
		good.SubjectTopicID = "subj-polity"
		prov := validDraft()
		prov.SubjectTopicID = "subj-polity"
		prov.PrimaryTopic = taxonomy.Provisional("Coalition Dharma")
		bad := validDraft()
		bad.Text = "??"

		results := runner.Run(ctx, []ingest.QuestionDraft{good, prov, bad})
		if !results[0].Imported() || !results[1].Imported() {
			t.Fatalf("results = %+v, want first two imported", results)
		}
		if results[2].Imported() {
			t.Error("invalid draft must not import")
		}

		tp, err := store.GetTopic(ctx, "prov-coalition-dharma")
		if err != nil {
			t.Fatalf("provisional topic not persisted: %v", err)
		}
		if tp.TopicType != taxonomy.TypeProvisional {
			t.Errorf("TopicType = %s, want provisional", tp.TopicType)
		}
	})
}
