// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mcp-pantry-assistant/internal/models"
)

// ErrNotFound is returned when a referenced pantry item or serving does not exist.
var ErrNotFound = errors.New("not found")

const timeLayout = time.RFC3339

type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps the foreign_keys pragma on the only connection.
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db, now: time.Now}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS pantry_items (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        group_id TEXT NOT NULL,
        group_name TEXT NOT NULL DEFAULT '',
        best_by TEXT NOT NULL DEFAULT '',
        location TEXT NOT NULL DEFAULT '',
        barcode TEXT NOT NULL DEFAULT '',
        cost TEXT NOT NULL DEFAULT '',
        image TEXT NOT NULL DEFAULT '',
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS pantry_servings (
        item_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        serving_id TEXT NOT NULL,
        label TEXT NOT NULL,
        amount TEXT NOT NULL,
        unit TEXT NOT NULL,
        energy_kcal TEXT NOT NULL,
        protein_g TEXT NOT NULL,
        fat_g TEXT NOT NULL,
        saturated_fat_g TEXT NOT NULL,
        carbs_g TEXT NOT NULL,
        sugar_g TEXT NOT NULL,
        fiber_g TEXT NOT NULL,
        cholesterol_mg TEXT NOT NULL,
        sodium_mg TEXT NOT NULL,
        PRIMARY KEY (item_id, position),
        FOREIGN KEY (item_id) REFERENCES pantry_items(id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS food_logs (
        id TEXT PRIMARY KEY,
        mode TEXT NOT NULL,
        food_id TEXT NOT NULL DEFAULT '',
        serving_id TEXT NOT NULL DEFAULT '',
        name TEXT NOT NULL,
        serving_label TEXT NOT NULL,
        amount TEXT NOT NULL,
        unit TEXT NOT NULL,
        quantity TEXT NOT NULL,
        energy_kcal TEXT NOT NULL,
        protein_g TEXT NOT NULL,
        fat_g TEXT NOT NULL,
        saturated_fat_g TEXT NOT NULL,
        carbs_g TEXT NOT NULL,
        sugar_g TEXT NOT NULL,
        fiber_g TEXT NOT NULL,
        cholesterol_mg TEXT NOT NULL,
        sodium_mg TEXT NOT NULL,
        notes TEXT NOT NULL DEFAULT '',
        group_id TEXT NOT NULL DEFAULT '',
        logged_at TEXT NOT NULL,
        created_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_pantry_items_group ON pantry_items(group_id);
    CREATE INDEX IF NOT EXISTS idx_food_logs_group ON food_logs(group_id);
    CREATE INDEX IF NOT EXISTS idx_food_logs_logged_at ON food_logs(logged_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const nutrientColumns = "energy_kcal, protein_g, fat_g, saturated_fat_g, carbs_g, sugar_g, fiber_g, cholesterol_mg, sodium_mg"

func nutrientArgs(n models.NutrientSet) []interface{} {
	args := make([]interface{}, 0, len(models.NutrientKeys))
	for _, key := range models.NutrientKeys {
		args = append(args, *n.Field(key))
	}
	return args
}

func nutrientDest(n *models.NutrientSet) []interface{} {
	dest := make([]interface{}, 0, len(models.NutrientKeys))
	for _, key := range models.NutrientKeys {
		dest = append(dest, n.Field(key))
	}
	return dest
}

// ApplyFoodCommand stores a validated add-food command as a new pantry item.
func (s *SQLiteStorage) ApplyFoodCommand(ctx context.Context, cmd models.FoodCommandPayload) (models.PantryItem, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return models.PantryItem{}, errors.New("food command has no name")
	}
	if len(cmd.Servings) == 0 {
		return models.PantryItem{}, errors.New("food command has no servings")
	}

	now := s.now().UTC().Truncate(time.Second)
	item := models.PantryItem{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(cmd.Name),
		GroupID:   cmd.GroupID,
		GroupName: cmd.GroupName,
		BestBy:    cmd.BestBy,
		Location:  cmd.Location,
		Barcode:   cmd.Barcode,
		Cost:      cmd.Cost,
		Image:     cmd.Image,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.PantryItem{}, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	itemQuery := `
        INSERT INTO pantry_items (id, name, group_id, group_name, best_by, location, barcode, cost, image, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = tx.ExecContext(ctx, itemQuery,
		item.ID, item.Name, item.GroupID, item.GroupName, item.BestBy, item.Location,
		item.Barcode, item.Cost, item.Image, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return models.PantryItem{}, fmt.Errorf("failed to insert pantry item: %w", err)
	}

	servingQuery := `
        INSERT INTO pantry_servings (item_id, position, serving_id, label, amount, unit, ` + nutrientColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	for i, serving := range cmd.Servings {
		if serving.ID == "" {
			serving.ID = fmt.Sprintf("serving-%d", i+1)
		}
		serving.NutrientSet = serving.NutrientSet.WithDefaults()

		args := []interface{}{item.ID, i, serving.ID, serving.Label, serving.Amount, serving.Unit}
		args = append(args, nutrientArgs(serving.NutrientSet)...)
		if _, err := tx.ExecContext(ctx, servingQuery, args...); err != nil {
			return models.PantryItem{}, fmt.Errorf("failed to insert serving: %w", err)
		}
		item.Servings = append(item.Servings, serving)
	}

	if err := tx.Commit(); err != nil {
		return models.PantryItem{}, fmt.Errorf("failed to commit pantry item: %w", err)
	}
	return item, nil
}

// ApplyFoodLogCommand records a meal. Existing mode snapshots the stored
// serving; manual mode stores the inline entry. Nutrients are multiplied by
// the quantity before they are written.
func (s *SQLiteStorage) ApplyFoodLogCommand(ctx context.Context, cmd models.FoodLogCommandPayload) (models.FoodLogEntry, error) {
	quantity := strings.TrimSpace(cmd.Quantity)
	if quantity == "" {
		quantity = "1"
	}
	factor, err := strconv.ParseFloat(quantity, 64)
	if err != nil || factor <= 0 {
		return models.FoodLogEntry{}, fmt.Errorf("invalid quantity %q", cmd.Quantity)
	}

	loggedAt, err := parseLogDate(cmd.Date, s.now())
	if err != nil {
		return models.FoodLogEntry{}, err
	}

	entry := models.FoodLogEntry{
		ID:        uuid.NewString(),
		Mode:      cmd.Mode,
		Quantity:  quantity,
		Notes:     cmd.Notes,
		GroupID:   cmd.GroupID,
		LoggedAt:  loggedAt,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}

	var serving models.Serving
	switch cmd.Mode {
	case models.LogModeExisting:
		name, stored, err := s.findServing(ctx, cmd.FoodID, cmd.ServingID)
		if err != nil {
			return models.FoodLogEntry{}, err
		}
		entry.FoodID = cmd.FoodID
		entry.ServingID = stored.ID
		entry.Name = name
		serving = stored
	case models.LogModeManual:
		if cmd.Manual == nil || strings.TrimSpace(cmd.Manual.Name) == "" {
			return models.FoodLogEntry{}, errors.New("manual log command has no food")
		}
		entry.Name = strings.TrimSpace(cmd.Manual.Name)
		serving = cmd.Manual.Serving
	default:
		return models.FoodLogEntry{}, fmt.Errorf("unknown log mode %q", cmd.Mode)
	}

	entry.ServingLabel = serving.Label
	entry.Amount = serving.Amount
	entry.Unit = serving.Unit
	entry.Nutrients, err = scaleNutrients(serving.NutrientSet.WithDefaults(), factor)
	if err != nil {
		return models.FoodLogEntry{}, err
	}

	query := `
        INSERT INTO food_logs (id, mode, food_id, serving_id, name, serving_label, amount, unit, quantity, ` + nutrientColumns + `,
            notes, group_id, logged_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	args := []interface{}{
		entry.ID, string(entry.Mode), entry.FoodID, entry.ServingID, entry.Name,
		entry.ServingLabel, entry.Amount, entry.Unit, entry.Quantity,
	}
	args = append(args, nutrientArgs(entry.Nutrients)...)
	args = append(args, entry.Notes, entry.GroupID, entry.LoggedAt.Format(timeLayout), entry.CreatedAt.Format(timeLayout))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return models.FoodLogEntry{}, fmt.Errorf("failed to insert food log: %w", err)
	}
	return entry, nil
}

// findServing loads a stored serving. An empty servingID selects the item's
// first serving.
func (s *SQLiteStorage) findServing(ctx context.Context, foodID, servingID string) (string, models.Serving, error) {
	query := `
        SELECT i.name, s.serving_id, s.label, s.amount, s.unit, ` + prefixed("s.", nutrientColumns) + `
        FROM pantry_servings s
        JOIN pantry_items i ON i.id = s.item_id
        WHERE s.item_id = ?
    `
	args := []interface{}{foodID}
	if servingID != "" {
		query += " AND s.serving_id = ?"
		args = append(args, servingID)
	}
	query += " ORDER BY s.position LIMIT 1"

	var name string
	var serving models.Serving
	dest := []interface{}{&name, &serving.ID, &serving.Label, &serving.Amount, &serving.Unit}
	dest = append(dest, nutrientDest(&serving.NutrientSet)...)

	err := s.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.Serving{}, fmt.Errorf("serving %q of food %q: %w", servingID, foodID, ErrNotFound)
	}
	if err != nil {
		return "", models.Serving{}, fmt.Errorf("failed to load serving: %w", err)
	}
	return name, serving, nil
}

func (s *SQLiteStorage) ListPantry(ctx context.Context, groupID string, limit int) ([]*models.PantryItem, error) {
	query := `
        SELECT id, name, group_id, group_name, best_by, location, barcode, cost, image, created_at, updated_at
        FROM pantry_items
        WHERE 1=1
    `
	args := []interface{}{}

	if groupID != "" {
		query += " AND group_id = ?"
		args = append(args, groupID)
	}

	query += " ORDER BY created_at DESC, name LIMIT ?"
	args = append(args, limitOrDefault(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pantry: %w", err)
	}
	defer rows.Close()

	var items []*models.PantryItem
	for rows.Next() {
		item := &models.PantryItem{}
		var createdAtStr, updatedAtStr string

		err := rows.Scan(
			&item.ID, &item.Name, &item.GroupID, &item.GroupName, &item.BestBy,
			&item.Location, &item.Barcode, &item.Cost, &item.Image, &createdAtStr, &updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pantry item: %w", err)
		}

		if item.CreatedAt, err = time.Parse(timeLayout, createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if item.UpdatedAt, err = time.Parse(timeLayout, updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pantry: %w", err)
	}
	rows.Close()

	for _, item := range items {
		if err := s.loadServings(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to load servings for item %s: %w", item.ID, err)
		}
	}

	return items, nil
}

func (s *SQLiteStorage) loadServings(ctx context.Context, item *models.PantryItem) error {
	query := `
        SELECT serving_id, label, amount, unit, ` + nutrientColumns + `
        FROM pantry_servings
        WHERE item_id = ?
        ORDER BY position
    `

	rows, err := s.db.QueryContext(ctx, query, item.ID)
	if err != nil {
		return fmt.Errorf("failed to query servings: %w", err)
	}
	defer rows.Close()

	var servings []models.Serving
	for rows.Next() {
		serving := models.Serving{}
		dest := []interface{}{&serving.ID, &serving.Label, &serving.Amount, &serving.Unit}
		dest = append(dest, nutrientDest(&serving.NutrientSet)...)
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan serving: %w", err)
		}
		servings = append(servings, serving)
	}

	item.Servings = servings
	return rows.Err()
}

func (s *SQLiteStorage) ListFoodLogs(ctx context.Context, groupID, startDate, endDate string, limit int) ([]*models.FoodLogEntry, error) {
	query := `
        SELECT id, mode, food_id, serving_id, name, serving_label, amount, unit, quantity, ` + nutrientColumns + `,
            notes, group_id, logged_at, created_at
        FROM food_logs
        WHERE 1=1
    `
	args := []interface{}{}

	if groupID != "" {
		query += " AND group_id = ?"
		args = append(args, groupID)
	}
	if startDate != "" {
		query += " AND DATE(logged_at) >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND DATE(logged_at) <= ?"
		args = append(args, endDate)
	}

	query += " ORDER BY logged_at DESC, created_at DESC LIMIT ?"
	args = append(args, limitOrDefault(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query food logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.FoodLogEntry
	for rows.Next() {
		entry := &models.FoodLogEntry{}
		var mode, loggedAtStr, createdAtStr string

		dest := []interface{}{
			&entry.ID, &mode, &entry.FoodID, &entry.ServingID, &entry.Name,
			&entry.ServingLabel, &entry.Amount, &entry.Unit, &entry.Quantity,
		}
		dest = append(dest, nutrientDest(&entry.Nutrients)...)
		dest = append(dest, &entry.Notes, &entry.GroupID, &loggedAtStr, &createdAtStr)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan food log: %w", err)
		}

		entry.Mode = models.LogMode(mode)
		if entry.LoggedAt, err = time.Parse(timeLayout, loggedAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse logged_at: %w", err)
		}
		if entry.CreatedAt, err = time.Parse(timeLayout, createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// parseLogDate accepts a calendar date, an RFC 3339 timestamp or nothing.
func parseLogDate(date string, now time.Time) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return now.UTC().Truncate(time.Second), nil
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Add(12 * time.Hour), nil
	}
	t, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid log date %q", date)
	}
	return t.UTC().Truncate(time.Second), nil
}

func scaleNutrients(n models.NutrientSet, factor float64) (models.NutrientSet, error) {
	for _, key := range models.NutrientKeys {
		field := n.Field(key)
		v, err := strconv.ParseFloat(strings.TrimSpace(*field), 64)
		if err != nil {
			return models.NutrientSet{}, fmt.Errorf("invalid %s value %q", key, *field)
		}
		*field = strconv.FormatFloat(math.Round(v*factor*100)/100, 'f', -1, 64)
	}
	return n, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = prefix + p
	}
	return strings.Join(parts, ", ")
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
