package dialect

import (
	"reflect"
	"testing"
)

func TestStages(t *testing.T) {
	cases := []struct {
		name  string
		stage func(string) []string
		in    string
		want  []string
	}{
		{
			name:  "quote identifiers",
			stage: quoteIdentifiers,
			in:    "INSERT INTO `users` (`id`) VALUES ('`x`')",
			want:  []string{`INSERT INTO "users" ("id") VALUES ('` + "`x`" + `')`},
		},
		{
			name:  "strip table options",
			stage: stripTableOptions,
			in:    "CREATE TABLE t (a INT) ENGINE=InnoDB AUTO_INCREMENT=7 DEFAULT CHARSET=latin1",
			want:  []string{"CREATE TABLE t (a INT) AUTO_INCREMENT=7"},
		},
		{
			name:  "strip table options without auto increment",
			stage: stripTableOptions,
			in:    "CREATE TABLE t (a INT) ENGINE=InnoDB DEFAULT CHARSET=latin1",
			want:  []string{"CREATE TABLE t (a INT)"},
		},
		{
			name:  "enum with parenthesis in a value",
			stage: enumToText,
			in:    "CREATE TABLE t (a ENUM('x)','y') NOT NULL, b SET('p','q'))",
			want:  []string{"CREATE TABLE t (a TEXT NOT NULL, b TEXT)"},
		},
		{
			name:  "mysql column attributes",
			stage: columnAttributes,
			in: "CREATE TABLE t (id INT(11) UNSIGNED NOT NULL, body LONGTEXT CHARACTER SET utf8mb4 COLLATE utf8mb4_bin COMMENT 'the body', " +
				"updated DATETIME(3) ON UPDATE CURRENT_TIMESTAMP(3), score DOUBLE(8,2), n MEDIUMINT(9))",
			want: []string{"CREATE TABLE t (id INT NOT NULL, body TEXT, updated DATETIME, score DOUBLE, n INTEGER)"},
		},
		{
			name:  "auto increment keyword",
			stage: autoIncrementKeyword,
			in:    "CREATE TABLE t (id INT NOT NULL AUTO_INCREMENT)",
			want:  []string{"CREATE TABLE t (id INT NOT NULL AUTOINCREMENT)"},
		},
		{
			name:  "integer primary key idiom",
			stage: integerPrimaryKey,
			in:    "CREATE TABLE t (id int autoincrement primary key)",
			want:  []string{"CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT)"},
		},
		{
			name:  "bigint is not the int idiom",
			stage: integerPrimaryKey,
			in:    "CREATE TABLE t (id BIGINT AUTOINCREMENT PRIMARY KEY)",
			want:  []string{"CREATE TABLE t (id BIGINT AUTOINCREMENT PRIMARY KEY)"},
		},
		{
			name:  "column unique",
			stage: stripColumnUnique,
			in:    "CREATE TABLE t (email TEXT UNIQUE, code TEXT UNIQUE KEY NOT NULL, UNIQUE KEY uq (email))",
			want:  []string{"CREATE TABLE t (email TEXT, code TEXT NOT NULL, UNIQUE KEY uq (email))"},
		},
		{
			name:  "alter table add",
			stage: dropAlterTableAdd,
			in:    `ALTER TABLE "x" ADD CONSTRAINT fk FOREIGN KEY (y) REFERENCES z (id)`,
			want:  nil,
		},
		{
			name:  "alter table rename",
			stage: dropAlterTableAdd,
			in:    "ALTER TABLE x RENAME TO z",
			want:  []string{"ALTER TABLE x RENAME TO z"},
		},
		{
			name:  "table constraints",
			stage: dropTableConstraints,
			in:    "CREATE TABLE t (a INT, b INT, PRIMARY KEY (a), UNIQUE KEY ub (b), KEY kb (b), CONSTRAINT fk FOREIGN KEY (b) REFERENCES o (id), INDEX ix (a))",
			want:  []string{"CREATE TABLE t (a INT, b INT, PRIMARY KEY (a))"},
		},
		{
			name:  "insert ignore",
			stage: insertIgnore,
			in:    "INSERT IGNORE INTO t VALUES (1)",
			want:  []string{"INSERT OR IGNORE INTO t VALUES (1)"},
		},
		{
			name:  "lower autoincrement",
			stage: lowerAutoincrement,
			in:    `CREATE TABLE "Order Items" (id INTEGER PRIMARY KEY AUTOINCREMENT, n INT)`,
			want: []string{
				"CREATE SEQUENCE IF NOT EXISTS order_items_id_seq",
				`CREATE TABLE "Order Items" (id INTEGER PRIMARY KEY DEFAULT nextval('order_items_id_seq'), n INT)`,
			},
		},
		{
			name:  "lower autoincrement starts at table option",
			stage: lowerAutoincrement,
			in:    `CREATE TABLE "users" ("id" INTEGER NOT NULL AUTOINCREMENT, PRIMARY KEY ("id")) AUTO_INCREMENT=42`,
			want: []string{
				"CREATE SEQUENCE IF NOT EXISTS users_id_seq START 42",
				`CREATE TABLE "users" ("id" INTEGER NOT NULL DEFAULT nextval('users_id_seq'), PRIMARY KEY ("id"))`,
			},
		},
		{
			name:  "lower autoincrement drops unused table option",
			stage: lowerAutoincrement,
			in:    "CREATE TABLE t (a INT) AUTO_INCREMENT=5",
			want:  []string{"CREATE TABLE t (a INT)"},
		},
		{
			name:  "lower autoincrement keeps explicit default",
			stage: lowerAutoincrement,
			in:    "CREATE TABLE t (id INTEGER DEFAULT 1 AUTOINCREMENT)",
			want:  []string{"CREATE TABLE t (id INTEGER DEFAULT 1)"},
		},
	}

	for _, tc := range cases {
		got := tc.stage(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %#v, want %#v", tc.name, got, tc.want)
		}
		// Each stage must not match its own output.
		for _, stmt := range got {
			if again := tc.stage(stmt); len(again) > 0 && again[len(again)-1] != stmt {
				t.Fatalf("%s: stage is not idempotent on %q: %#v", tc.name, stmt, again)
			}
		}
	}
}

func TestSequenceStartFollowsExplicitValues(t *testing.T) {
	cases := map[string]struct {
		in   []string
		want string
	}{
		"column list": {
			in: []string{
				"CREATE SEQUENCE IF NOT EXISTS users_id_seq",
				`CREATE TABLE "users" ("id" INTEGER DEFAULT nextval('users_id_seq'), "email" TEXT, PRIMARY KEY ("id"))`,
				`INSERT INTO "users" ("id", "email") VALUES (1, 'a@x'), (7, 'b@x')`,
				`INSERT INTO "users" ("email", "id") VALUES ('c@x', '3')`,
			},
			want: "CREATE SEQUENCE IF NOT EXISTS users_id_seq START 8",
		},
		"positional values": {
			in: []string{
				"CREATE SEQUENCE IF NOT EXISTS t_id_seq",
				"CREATE TABLE t (name TEXT, id INTEGER DEFAULT nextval('t_id_seq'))",
				"INSERT INTO t VALUES ('a', 4), ('b', 2)",
			},
			want: "CREATE SEQUENCE IF NOT EXISTS t_id_seq START 5",
		},
		"table option already ahead": {
			in: []string{
				"CREATE SEQUENCE IF NOT EXISTS t_id_seq START 10",
				"CREATE TABLE t (id INTEGER DEFAULT nextval('t_id_seq'), name TEXT)",
				"INSERT INTO t VALUES (2, 'a')",
			},
			want: "CREATE SEQUENCE IF NOT EXISTS t_id_seq START 10",
		},
		"no explicit values": {
			in: []string{
				"CREATE SEQUENCE IF NOT EXISTS t_id_seq",
				"CREATE TABLE t (id INTEGER DEFAULT nextval('t_id_seq'), name TEXT)",
				"INSERT INTO t (name) VALUES ('a')",
			},
			want: "CREATE SEQUENCE IF NOT EXISTS t_id_seq",
		},
	}
	for name, tc := range cases {
		got := sequenceStart(tc.in)
		if got[0] != tc.want {
			t.Fatalf("%s: sequence = %q, want %q", name, got[0], tc.want)
		}
		if !reflect.DeepEqual(got[1:], tc.in[1:]) {
			t.Fatalf("%s: other statements changed: %#v", name, got[1:])
		}
		if again := sequenceStart(got); !reflect.DeepEqual(again, got) {
			t.Fatalf("%s: not idempotent: %#v", name, again)
		}
	}
}

func TestUnqualifyDatabase(t *testing.T) {
	in := []string{
		"CREATE DATABASE IF NOT EXISTS `shop`",
		"USE `shop`",
		"DROP TABLE IF EXISTS `shop`.`users`",
		"CREATE TABLE `shop`.`users` (`id` INT)",
		"INSERT INTO shop . users VALUES (1)",
		"CREATE INDEX ix ON shop.users (id)",
		"CREATE TABLE other.t (id INT)",
	}
	want := []string{
		"CREATE DATABASE IF NOT EXISTS `shop`",
		"USE `shop`",
		"DROP TABLE IF EXISTS `users`",
		"CREATE TABLE `users` (`id` INT)",
		"INSERT INTO users VALUES (1)",
		"CREATE INDEX ix ON users (id)",
		"CREATE TABLE other.t (id INT)",
	}
	if got := unqualifyDatabase(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("unqualifyDatabase() = %#v", got)
	}

	plain := []string{"CREATE TABLE s.t (id INT)"}
	if got := unqualifyDatabase(plain); !reflect.DeepEqual(got, plain) {
		t.Fatalf("unqualifyDatabase() without database statements = %#v", got)
	}
}

func TestSequenceName(t *testing.T) {
	if got := SequenceName("Line-Items", "ID"); got != "line_items_id_seq" {
		t.Fatalf("SequenceName() = %q", got)
	}
}
