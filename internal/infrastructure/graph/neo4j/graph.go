package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/regulation-rag/internal/core/domain"
)

const (
	upsertRecitals = `
UNWIND $recitals AS r
MERGE (n:Recital {version: $version, number: r.id})
SET n.page = r.page`

	upsertArticles = `
UNWIND $articles AS a
MERGE (art:Article {version: $version, number: a.id})
SET art.title = a.title, art.page = a.page, art.subsections = a.subsections
FOREACH (hasChapter IN CASE WHEN a.chapter <> '' THEN [1] ELSE [] END |
	MERGE (c:Chapter {version: $version, number: a.chapter})
	SET c.title = a.chapter_title
	FOREACH (noSection IN CASE WHEN a.section = '' THEN [1] ELSE [] END |
		MERGE (c)-[:CONTAINS]->(art))
	FOREACH (hasSection IN CASE WHEN a.section <> '' THEN [1] ELSE [] END |
		MERGE (s:Section {version: $version, chapter: a.chapter, number: a.section})
		SET s.title = a.section_title
		MERGE (c)-[:CONTAINS]->(s)
		MERGE (s)-[:CONTAINS]->(art)))`

	dropOtherVersions = `
MATCH (n)
WHERE (n:Recital OR n:Article OR n:Chapter OR n:Section) AND n.version <> $version
DETACH DELETE n`
)

type runner func(ctx context.Context, cypher string, params map[string]any) error

// Graph mirrors the chapter/section/article tree of a corpus version into
// Neo4j for hierarchy browsing. Only the latest version is kept.
type Graph struct {
	driver neo4j.DriverWithContext
	run    runner
}

func New(ctx context.Context, uri, user, password, database string) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(database))
	}
	return &Graph{
		driver: driver,
		run: func(ctx context.Context, cypher string, params map[string]any) error {
			_, err := neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, opts...)
			return err
		},
	}, nil
}

func (g *Graph) Close(ctx context.Context) error {
	if g.driver == nil {
		return nil
	}
	return g.driver.Close(ctx)
}

func (g *Graph) SyncHierarchy(ctx context.Context, version string, structures []domain.ArticleStructure) error {
	recitals, articles := hierarchyParams(structures)

	steps := []struct {
		name   string
		cypher string
		params map[string]any
	}{
		{"recitals", upsertRecitals, map[string]any{"version": version, "recitals": recitals}},
		{"articles", upsertArticles, map[string]any{"version": version, "articles": articles}},
		{"prune", dropOtherVersions, map[string]any{"version": version}},
	}
	for _, step := range steps {
		if err := g.run(ctx, step.cypher, step.params); err != nil {
			return fmt.Errorf("neo4j sync %s: %w", step.name, err)
		}
	}
	return nil
}

func hierarchyParams(structures []domain.ArticleStructure) (recitals, articles []map[string]any) {
	recitals = make([]map[string]any, 0, len(structures))
	articles = make([]map[string]any, 0, len(structures))
	for _, s := range structures {
		if s.IsRecital {
			recitals = append(recitals, map[string]any{
				"id":   s.ID,
				"page": s.Page,
			})
			continue
		}
		articles = append(articles, map[string]any{
			"id":            s.ID,
			"title":         s.Title,
			"page":          s.Page,
			"subsections":   len(s.Subsections),
			"chapter":       s.Chapter,
			"chapter_title": s.ChapterTitle,
			"section":       s.Section,
			"section_title": s.SectionTitle,
		})
	}
	return recitals, articles
}
