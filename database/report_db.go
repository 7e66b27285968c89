package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// LocusRow is one locus reading in a family listing.
type LocusRow struct {
	ID        uint   `json:"id"`
	LocusName string `json:"locus_name"`
	Allele1   string `json:"allele_1"`
	Allele2   string `json:"allele_2"`
}

// PersonSummary is one person in a family listing.
type PersonSummary struct {
	ID           uint       `json:"id"`
	Role         string     `json:"role"`
	Name         string     `json:"name"`
	LociCount    int        `json:"loci_count"`
	LatestUpload *int64     `json:"latest_upload,omitempty"`
	Loci         []LocusRow `json:"loci"`
}

// FamilyEntry groups a parent with the children attested by its files.
// Orphan children (no parent through any shared file) appear as entries
// without a parent.
type FamilyEntry struct {
	Parent   *PersonSummary  `json:"parent,omitempty"`
	Children []PersonSummary `json:"children"`
}

// FamilyPage is one page of the family listing.
type FamilyPage struct {
	Data     []FamilyEntry `json:"data"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// ListFamilies returns a page of parents ordered by their latest upload,
// children attached through shared source files, with orphan children filling
// the trailing pages. Total counts parents only.
func ListFamilies(db *sql.DB, page, pageSize int) (*FamilyPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize

	parentsCount, err := countParents(db)
	if err != nil {
		return nil, err
	}

	result := &FamilyPage{Data: []FamilyEntry{}, Total: parentsCount, Page: page, PageSize: pageSize}

	if start < parentsCount {
		parents, err := listParentsByLatestUpload(db, pageSize, start)
		if err != nil {
			return nil, err
		}
		for i := range parents {
			parent := parents[i]
			children, err := listChildrenViaSharedFiles(db, parent.ID)
			if err != nil {
				return nil, err
			}
			result.Data = append(result.Data, FamilyEntry{Parent: &parent, Children: children})
		}
	}

	remaining := pageSize - len(result.Data)
	if remaining > 0 {
		orphanStart := start - parentsCount
		if orphanStart < 0 {
			orphanStart = 0
		}
		orphans, err := listOrphanChildren(db, remaining, orphanStart)
		if err != nil {
			return nil, err
		}
		for i := range orphans {
			result.Data = append(result.Data, FamilyEntry{Children: []PersonSummary{orphans[i]}})
		}
	}

	if err := attachLoci(db, result.Data); err != nil {
		return nil, err
	}
	return result, nil
}

func countParents(db *sql.DB) (int, error) {
	sqlStr, args, err := psql.Select("COUNT(*)").
		From("people").
		Where(sq.Eq{"role": []string{"father", "mother"}}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build SQL query for countParents: %w", err)
	}

	var count int
	if err := db.QueryRow(sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count parents: %w", err)
	}
	return count, nil
}

func listParentsByLatestUpload(db *sql.DB, limit, offset int) ([]PersonSummary, error) {
	queryBuilder := psql.Select(
		"people.id", "people.role", "people.name", "people.loci_count",
		"MAX(uploaded_files.uploaded_at) AS latest_upload",
	).
		From("people").
		LeftJoin("person_files ON person_files.person_id = people.id").
		LeftJoin("uploaded_files ON uploaded_files.id = person_files.uploaded_file_id").
		Where(sq.Eq{"people.role": []string{"father", "mother"}}).
		GroupBy("people.id").
		OrderBy("latest_upload DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	return queryPersonSummaries(db, queryBuilder, "listParentsByLatestUpload")
}

func listChildrenViaSharedFiles(db *sql.DB, parentID uint) ([]PersonSummary, error) {
	queryBuilder := psql.Select(
		"people.id", "people.role", "people.name", "people.loci_count",
		"MAX(uploaded_files.uploaded_at) AS latest_upload",
	).
		From("people").
		Join("person_files ON person_files.person_id = people.id").
		Join("uploaded_files ON uploaded_files.id = person_files.uploaded_file_id").
		Where(sq.Eq{"people.role": "child"}).
		Where(sq.Expr(
			"person_files.uploaded_file_id IN (SELECT uploaded_file_id FROM person_files WHERE person_id = ?)",
			parentID,
		)).
		GroupBy("people.id").
		OrderBy("people.id ASC")

	return queryPersonSummaries(db, queryBuilder, "listChildrenViaSharedFiles")
}

func listOrphanChildren(db *sql.DB, limit, offset int) ([]PersonSummary, error) {
	queryBuilder := psql.Select(
		"people.id", "people.role", "people.name", "people.loci_count",
		"MAX(uploaded_files.uploaded_at) AS latest_upload",
	).
		From("people").
		LeftJoin("person_files ON person_files.person_id = people.id").
		LeftJoin("uploaded_files ON uploaded_files.id = person_files.uploaded_file_id").
		Where(sq.Eq{"people.role": "child"}).
		Where(sq.Expr(`NOT EXISTS (
			SELECT 1 FROM person_files pf1
			JOIN person_files pf2 ON pf1.uploaded_file_id = pf2.uploaded_file_id
			JOIN people parents ON parents.id = pf2.person_id
			WHERE pf1.person_id = people.id AND parents.role IN ('father', 'mother')
		)`)).
		GroupBy("people.id").
		OrderBy("latest_upload DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	return queryPersonSummaries(db, queryBuilder, "listOrphanChildren")
}

func queryPersonSummaries(db *sql.DB, queryBuilder sq.SelectBuilder, queryName string) ([]PersonSummary, error) {
	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for %s: %w", queryName, err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s: %w", queryName, err)
	}
	defer rows.Close()

	var people []PersonSummary
	for rows.Next() {
		var p PersonSummary
		var latest sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Role, &p.Name, &p.LociCount, &latest); err != nil {
			return nil, fmt.Errorf("failed to scan row in %s: %w", queryName, err)
		}
		if latest.Valid {
			p.LatestUpload = &latest.Int64
		}
		p.Loci = []LocusRow{}
		people = append(people, p)
	}
	return people, rows.Err()
}

// attachLoci loads the loci for every person in the page with one query.
func attachLoci(db *sql.DB, entries []FamilyEntry) error {
	index := make(map[uint]*PersonSummary)
	var ids []uint
	for i := range entries {
		if entries[i].Parent != nil {
			index[entries[i].Parent.ID] = entries[i].Parent
			ids = append(ids, entries[i].Parent.ID)
		}
		for j := range entries[i].Children {
			child := &entries[i].Children[j]
			index[child.ID] = child
			ids = append(ids, child.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	sqlStr, args, err := psql.Select("id", "person_id", "locus_name", "allele_1", "allele_2").
		From("dna_loci").
		Where(sq.Eq{"person_id": ids}).
		OrderBy("person_id ASC", "locus_name ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for attachLoci: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to load loci for family page: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row LocusRow
		var personID uint
		if err := rows.Scan(&row.ID, &personID, &row.LocusName, &row.Allele1, &row.Allele2); err != nil {
			return fmt.Errorf("failed to scan locus row: %w", err)
		}
		if person, ok := index[personID]; ok {
			person.Loci = append(person.Loci, row)
		}
	}
	return rows.Err()
}
