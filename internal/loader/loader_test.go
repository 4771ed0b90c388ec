package loader

import (
	"bytes"
	"context"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/schemaquery/schemaquery/internal/query"
	"github.com/schemaquery/schemaquery/internal/query/duckdb"
	"github.com/schemaquery/schemaquery/internal/schema"
)

func openSession(t *testing.T) query.Session {
	t.Helper()
	session, err := duckdb.NewEngine(duckdb.Options{Threads: 1}).Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestLoadTabularReplacesUploadedTable(t *testing.T) {
	ctx := context.Background()
	session := openSession(t)

	first, err := schema.ParseTabular([]byte("a,b\n1,x\n"), schema.KindCSV)
	if err != nil {
		t.Fatalf("ParseTabular() error = %v", err)
	}
	if _, err := LoadTabular(ctx, session, first); err != nil {
		t.Fatalf("LoadTabular() error = %v", err)
	}

	second, err := schema.ParseTabular([]byte("id,name,marks\n1,ada,90\n2,grace,70.5\n3,linus,\n"), schema.KindCSV)
	if err != nil {
		t.Fatalf("ParseTabular() error = %v", err)
	}
	got, err := LoadTabular(ctx, session, second)
	if err != nil {
		t.Fatalf("LoadTabular() error = %v", err)
	}
	want := schema.SchemaContext{TableName: "uploaded_table", Columns: []string{"id", "name", "marks"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("LoadTabular() = %#v, want %#v", got, want)
	}

	result, err := query.Execute(ctx, session, "SELECT COUNT(*) AS row_count, AVG(marks) AS average_marks FROM uploaded_table;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0]["row_count"] != int64(3) || result.Rows[0]["average_marks"] != 80.25 {
		t.Fatalf("row = %#v", result.Rows[0])
	}
}

func TestLoadTabularHeaderOnly(t *testing.T) {
	ctx := context.Background()
	session := openSession(t)

	table, err := schema.ParseTabular([]byte("id,name\n"), schema.KindCSV)
	if err != nil {
		t.Fatalf("ParseTabular() error = %v", err)
	}
	if _, err := LoadTabular(ctx, session, table); err != nil {
		t.Fatalf("LoadTabular() error = %v", err)
	}
	columns, err := session.TableColumns(ctx, "uploaded_table")
	if err != nil {
		t.Fatalf("TableColumns() error = %v", err)
	}
	if !reflect.DeepEqual(columns, []string{"id", "name"}) {
		t.Fatalf("TableColumns() = %v", columns)
	}
}

func TestLoadTabularRequiresColumns(t *testing.T) {
	if _, err := LoadTabular(context.Background(), openSession(t), schema.Tabular{}); err == nil {
		t.Fatal("LoadTabular() expected error for empty table")
	}
}

func TestLoadDDLAcceptsMySQLIdioms(t *testing.T) {
	ctx := context.Background()
	session := openSession(t)
	ddl := "CREATE TABLE `students` (\n" +
		"  `id` INT NOT NULL AUTO_INCREMENT,\n" +
		"  `name` VARCHAR(64) NOT NULL,\n" +
		"  `level` ENUM('junior','senior') NOT NULL DEFAULT 'junior',\n" +
		"  `marks` INT UNSIGNED,\n" +
		"  PRIMARY KEY (`id`),\n" +
		"  UNIQUE KEY `uq_name` (`name`)\n" +
		") ENGINE=InnoDB AUTO_INCREMENT=3 DEFAULT CHARSET=utf8mb4;\n" +
		"INSERT INTO `students` (`name`, `level`, `marks`) VALUES ('ada', 'senior', 90), ('grace', 'junior', 70);\n"

	report, err := LoadDDL(ctx, session, ddl, nil)
	if err != nil {
		t.Fatalf("LoadDDL() error = %v", err)
	}
	if report.Partial() {
		t.Fatalf("LoadDDL() failures = %#v", report.Failures)
	}
	want := schema.SchemaContext{TableName: "students", Columns: []string{"id", "name", "level", "marks"}}
	if !reflect.DeepEqual(report.Context, want) {
		t.Fatalf("Context = %#v, want %#v", report.Context, want)
	}
	if !reflect.DeepEqual(report.Tables, []string{"students"}) {
		t.Fatalf("Tables = %v", report.Tables)
	}

	result, err := query.Execute(ctx, session, "SELECT COUNT(*) AS row_count, MAX(id) AS max_id FROM students;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0]["row_count"] != int64(2) {
		t.Fatalf("row = %#v", result.Rows[0])
	}
}

func TestLoadDDLContinuesDumpedIDs(t *testing.T) {
	ctx := context.Background()
	session := openSession(t)
	ddl := "CREATE DATABASE shop;\nUSE shop;\n" +
		"CREATE TABLE `shop`.`users` (\n" +
		"  `id` int(11) NOT NULL AUTO_INCREMENT,\n" +
		"  `email` varchar(255) NOT NULL,\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB AUTO_INCREMENT=3 DEFAULT CHARSET=utf8mb4;\n" +
		"INSERT INTO `shop`.`users` VALUES (1,'a@x'),(2,'b@x');\n" +
		"INSERT INTO `users` (`email`) VALUES ('c@x');\n" +
		"CREATE TABLE tags (id INT AUTO_INCREMENT PRIMARY KEY, name TEXT);\n" +
		"INSERT INTO tags (id, name) VALUES (10, 'go');\n" +
		"INSERT INTO tags (name) VALUES ('sql');\n"

	report, err := LoadDDL(ctx, session, ddl, nil)
	if err != nil {
		t.Fatalf("LoadDDL() error = %v", err)
	}
	if report.Partial() {
		t.Fatalf("LoadDDL() failures = %#v", report.Failures)
	}
	want := schema.SchemaContext{TableName: "users", Columns: []string{"id", "email"}}
	if !reflect.DeepEqual(report.Context, want) {
		t.Fatalf("Context = %#v, want %#v", report.Context, want)
	}

	result, err := query.Execute(ctx, session, "SELECT id::BIGINT AS id FROM users WHERE email = 'c@x';")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0]["id"] != int64(3) {
		t.Fatalf("users rows = %#v", result.Rows)
	}
	result, err = query.Execute(ctx, session, "SELECT id::BIGINT AS id FROM tags WHERE name = 'sql';")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0]["id"] != int64(11) {
		t.Fatalf("tags rows = %#v", result.Rows)
	}
}

func TestLoadDDLSkipsFailingStatements(t *testing.T) {
	ctx := context.Background()
	session := openSession(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	ddl := "CREATE TABLE orders (id INT, total DECIMAL(10,2));\n" +
		"INSERT INTO missing_table VALUES (1);\n" +
		"INSERT INTO orders VALUES (1, 9.99);\n"

	report, err := LoadDDL(ctx, session, ddl, logger)
	if err != nil {
		t.Fatalf("LoadDDL() error = %v", err)
	}
	if report.Applied != 2 || len(report.Failures) != 1 {
		t.Fatalf("report = %#v", report)
	}
	if !strings.Contains(report.Failures[0].Statement, "missing_table") || report.Failures[0].Message == "" {
		t.Fatalf("failure = %#v", report.Failures[0])
	}
	if !strings.Contains(logs.String(), "schema statement skipped") {
		t.Fatalf("logs = %q", logs.String())
	}
	if !reflect.DeepEqual(report.Context.Columns, []string{"id", "total"}) {
		t.Fatalf("Columns = %v", report.Context.Columns)
	}
}

func TestLoadDDLTargetTableMissing(t *testing.T) {
	ctx := context.Background()
	session := openSession(t)
	ddl := "CREATE TABLE broken (id NOT_A_REAL_TYPE);\nCREATE TABLE other (id INT);\n"

	report, err := LoadDDL(ctx, session, ddl, nil)
	if err != nil {
		t.Fatalf("LoadDDL() error = %v", err)
	}
	if report.Context.TableName != "broken" {
		t.Fatalf("TableName = %q", report.Context.TableName)
	}
	if report.Context.Columns == nil || len(report.Context.Columns) != 0 {
		t.Fatalf("Columns = %#v, want empty", report.Context.Columns)
	}
	if !report.Partial() || !reflect.DeepEqual(report.Tables, []string{"other"}) {
		t.Fatalf("report = %#v", report)
	}
}

func TestLoadDDLWithoutCreateTable(t *testing.T) {
	report, err := LoadDDL(context.Background(), openSession(t), "SELECT 1;", nil)
	if err != nil {
		t.Fatalf("LoadDDL() error = %v", err)
	}
	if report.Context.TableName != schema.DefaultTableName || len(report.Context.Columns) != 0 {
		t.Fatalf("Context = %#v", report.Context)
	}
}

func TestAbbreviate(t *testing.T) {
	long := strings.Repeat("x", 200)
	if got := abbreviate(long); len(got) != 123 || !strings.HasSuffix(got, "...") {
		t.Fatalf("abbreviate() = %q", got)
	}
	if got := abbreviate("CREATE  TABLE\n t"); got != "CREATE TABLE t" {
		t.Fatalf("abbreviate() = %q", got)
	}
}
