package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"academyCards/internal/card"
	"academyCards/internal/config"
	"academyCards/internal/database"
	"academyCards/internal/editor"
	"academyCards/internal/people"
	"academyCards/internal/repository"
	"academyCards/internal/sheet"
)

const usage = `用法:
  admin seed-templates [数据库参数]          为尚无模板的类别创建默认模板
  admin import-people -file people.json [数据库参数]
  admin layout [-sheet-width 210 -sheet-height 297 -margin 5 -spacing 2 -count 0]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "seed-templates":
		runSeedTemplates(args)
	case "import-people":
		runImportPeople(args)
	case "layout":
		runLayout(args, os.Stdout)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

type dbFlags struct {
	host, name, user, password, sslmode *string
	port                                *int
}

func registerDBFlags(fs *flag.FlagSet) dbFlags {
	return dbFlags{
		host:     fs.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）"),
		port:     fs.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）"),
		name:     fs.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）"),
		user:     fs.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）"),
		password: fs.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）"),
		sslmode:  fs.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）"),
	}
}

func (f dbFlags) open() *gorm.DB {
	dbCfg, err := loadDatabaseConfig(*f.host, *f.port, *f.name, *f.user, *f.password, *f.sslmode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}
	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	return db
}

func runSeedTemplates(args []string) {
	fs := flag.NewFlagSet("seed-templates", flag.ExitOnError)
	dbf := registerDBFlags(fs)
	_ = fs.Parse(args)

	db := dbf.open()
	store := repository.NewGormStore(db)
	ctx := context.Background()

	for _, category := range card.Categories {
		_, err := repository.ForCategory(ctx, store, category)
		switch {
		case err == nil:
			fmt.Printf("%s: 已有模板，跳过\n", category)
			continue
		case errors.Is(err, repository.ErrNotFound):
		default:
			log.Fatalf("query templates for %s: %v", category, err)
		}

		tpl, err := seedTemplate(ctx, store, category)
		if err != nil {
			log.Fatalf("seed template for %s: %v", category, err)
		}
		fmt.Printf("%s: 已创建默认模板 %s（%d 个字段）\n", category, tpl.ID, len(tpl.Fields))
	}
}

// seedLayout 是默认模板的字段位置（毫米）：左侧照片，右侧文字，右下角二维码。
var seedLayout = []struct {
	name func(card.Role) card.SemanticName
	x, y float64
}{
	{name: photoFor, x: 4, y: 14},
	{name: constName(card.NameFullName), x: 30, y: 14},
	{name: constName(card.NameRegistrationNumber), x: 30, y: 22},
	{name: detailFor, x: 30, y: 30},
	{name: constName(card.NameQRCode), x: 63.6, y: 32},
}

func constName(n card.SemanticName) func(card.Role) card.SemanticName {
	return func(card.Role) card.SemanticName { return n }
}

func photoFor(r card.Role) card.SemanticName {
	switch r {
	case card.RoleTeacher:
		return card.NameTeacherPhoto
	case card.RoleEmployee:
		return card.NameEmployeePhoto
	default:
		return card.NameStudentPhoto
	}
}

func detailFor(r card.Role) card.SemanticName {
	switch r {
	case card.RoleTeacher:
		return card.NameSubject
	case card.RoleEmployee:
		return card.NameJobTitle
	default:
		return card.NameCourse
	}
}

// seedTemplate 用编辑器搭出默认模板并保存。
func seedTemplate(ctx context.Context, store repository.Store, category card.Category) (*card.Template, error) {
	e := editor.New(store, nil)
	if _, err := e.Create(category, "default "+string(category)); err != nil {
		return nil, err
	}
	for _, item := range seedLayout {
		f, ok := e.AddField(item.name(category.Role()))
		if !ok {
			continue
		}
		e.MoveField(f.ID, item.x, item.y)
	}
	if err := e.Save(ctx); err != nil {
		return nil, err
	}
	return e.Template(), nil
}

func runImportPeople(args []string) {
	fs := flag.NewFlagSet("import-people", flag.ExitOnError)
	file := fs.String("file", "", "人员记录 JSON 文件（[{category, values}]）")
	dbf := registerDBFlags(fs)
	_ = fs.Parse(args)

	if strings.TrimSpace(*file) == "" {
		log.Fatal("missing required flag: --file")
	}
	records, err := readRecords(*file)
	if err != nil {
		log.Fatalf("read records: %v", err)
	}

	db := dbf.open()
	n, err := people.NewStore(db).Import(context.Background(), records)
	if err != nil {
		log.Fatalf("import people: %v", err)
	}
	fmt.Printf("已导入 %d 条人员记录\n", n)
}

func readRecords(path string) ([]card.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []card.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

func runLayout(args []string, out io.StringWriter) {
	defaults := sheet.DefaultSettings()
	fs := flag.NewFlagSet("layout", flag.ExitOnError)
	width := fs.Float64("sheet-width", defaults.SheetWidthMM, "纸张宽度（毫米）")
	height := fs.Float64("sheet-height", defaults.SheetHeightMM, "纸张高度（毫米）")
	margin := fs.Float64("margin", defaults.MarginMM, "页边距（毫米）")
	spacing := fs.Float64("spacing", defaults.SpacingMM, "卡片间距（毫米）")
	count := fs.Int("count", 0, "输出前 N 个位置（0 表示整页）")
	_ = fs.Parse(args)

	s := defaults
	s.SheetWidthMM, s.SheetHeightMM, s.MarginMM, s.SpacingMM = *width, *height, *margin, *spacing
	if err := writeLayout(out, s, *count); err != nil {
		log.Fatalf("layout: %v", err)
	}
}

func writeLayout(out io.StringWriter, s sheet.Settings, count int) error {
	layout, err := sheet.ComputeLayout(s)
	if err != nil {
		return err
	}
	_, _ = out.WriteString(fmt.Sprintf("columns=%d rows=%d capacity=%d\n", layout.Columns, layout.Rows, layout.Capacity))
	if count <= 0 {
		count = layout.Capacity
	}
	for _, p := range layout.Placements(count) {
		_, _ = out.WriteString(fmt.Sprintf("#%d row=%d col=%d x=%.2fmm y=%.2fmm\n", p.Index+1, p.Row+1, p.Column+1, p.XMM, p.YMM))
	}
	return nil
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}
