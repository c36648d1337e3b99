package dbclient

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/smpawlowski/covid19/internal/domain"
)

// mongoConnector implements Connector for MongoDB.
type mongoConnector struct {
	client *mongo.Client
	dbName string
	logger *zap.Logger

	mu      sync.Mutex
	cursor  *mongo.Cursor
	fetched int
}

// mongoQuery is the JSON form of a MongoDB read.
type mongoQuery struct {
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter,omitempty"`
	Projection map[string]any `json:"projection,omitempty"`
	Sort       map[string]any `json:"sort,omitempty"`
}

func buildMongoURI(conn *domain.DatabaseConnection, password string) string {
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri := conn.Host
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
		return uri
	}

	port := conn.Port
	if port == 0 {
		port = 27017
	}
	uri := fmt.Sprintf("mongodb://%s:%d", conn.Host, port)
	if conn.Username != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", conn.Username, password, conn.Host, port)
	}
	if len(conn.Options) > 0 {
		params := make([]string, 0, len(conn.Options))
		for _, k := range sortedKeys(conn.Options) {
			params = append(params, k+"="+conn.Options[k])
		}
		uri += "/?" + strings.Join(params, "&")
	}
	return uri
}

func newMongoConnector(conn *domain.DatabaseConnection, password string, logger *zap.Logger) (*mongoConnector, error) {
	uri := buildMongoURI(conn, password)
	dbName := conn.Database
	if dbName == "" {
		dbName = "covid19"
	}

	logURI := uri
	if password != "" {
		logURI = strings.ReplaceAll(logURI, password, "***")
	}
	logger.Debug("connecting", zap.String("uri", logURI), zap.String("database", dbName))

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoConnector{client: client, dbName: dbName, logger: logger}, nil
}

// unmarshalEJSON re-encodes a map field through Extended JSON so $date,
// $numberLong and friends become BSON values.
func (m *mongoConnector) unmarshalEJSON(field map[string]any) map[string]any {
	if field == nil {
		return nil
	}
	raw, err := json.Marshal(field)
	if err != nil {
		return field
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		m.logger.Warn("extended json parse failed, using plain json", zap.Error(err))
		return field
	}
	result := make(map[string]any, len(doc))
	for _, elem := range doc {
		result[elem.Key] = elem.Value
	}
	return result
}

func (m *mongoConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

// Execute runs a find described by a JSON document:
// {"collection": "...", "filter": {...}, "projection": {...}, "sort": {...}}.
func (m *mongoConnector) Execute(ctx context.Context, query string, fetchSize int) (*QueryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCursorLocked(ctx)
	if fetchSize <= 0 {
		fetchSize = 500
	}

	var mq mongoQuery
	if err := json.Unmarshal([]byte(query), &mq); err != nil {
		return nil, fmt.Errorf("invalid query JSON: %w", err)
	}
	if mq.Collection == "" {
		return nil, fmt.Errorf("query must specify 'collection'")
	}

	opts := options.Find().SetBatchSize(int32(fetchSize))
	if p := m.unmarshalEJSON(mq.Projection); p != nil {
		opts.SetProjection(p)
	}
	if s := m.unmarshalEJSON(mq.Sort); s != nil {
		opts.SetSort(s)
	}
	filter := m.unmarshalEJSON(mq.Filter)
	if filter == nil {
		filter = map[string]any{}
	}

	coll := m.client.Database(m.dbName).Collection(mq.Collection)
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	m.cursor = cursor
	m.fetched = 0
	return m.fetchBatchLocked(ctx, fetchSize)
}

func (m *mongoConnector) FetchMore(ctx context.Context, fetchSize int) (*QueryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cursor == nil {
		return nil, fmt.Errorf("no active cursor: execute a query first")
	}
	if fetchSize <= 0 {
		fetchSize = 500
	}
	return m.fetchBatchLocked(ctx, fetchSize)
}

func (m *mongoConnector) fetchBatchLocked(ctx context.Context, fetchSize int) (*QueryPage, error) {
	var docs []bson.D
	for range fetchSize {
		if !m.cursor.Next(ctx) {
			break
		}
		var doc bson.D
		if err := m.cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := m.cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	m.fetched += len(docs)

	// Columns in first-seen order; _id is internal and dropped.
	var columns []string
	for _, doc := range docs {
		for _, elem := range doc {
			if elem.Key != "_id" && !slices.Contains(columns, elem.Key) {
				columns = append(columns, elem.Key)
			}
		}
	}

	rows := make([][]any, 0, len(docs))
	for _, doc := range docs {
		row := make([]any, len(columns))
		for _, elem := range doc {
			if j := slices.Index(columns, elem.Key); j >= 0 {
				row[j] = mongoValue(elem.Value)
			}
		}
		rows = append(rows, row)
	}

	hasMore := len(docs) == fetchSize
	if !hasMore {
		m.closeCursorLocked(ctx)
	}
	m.logger.Debug("fetched documents", zap.Int("batch", len(docs)), zap.Int("total", m.fetched))

	return &QueryPage{
		Columns:      columns,
		Rows:         rows,
		TotalFetched: m.fetched,
		HasMore:      hasMore,
	}, nil
}

// mongoValue flattens BSON scalars into plain Go values.
func mongoValue(v any) any {
	switch val := v.(type) {
	case nil, string, float64, bool:
		return val
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case bson.DateTime:
		return val.Time().UTC().Format(time.DateOnly)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// WriteTable stores one document per row. Replace mode drops the collection
// first. Nil values are left out of the document.
func (m *mongoConnector) WriteTable(ctx context.Context, table string, cols []Column, rows [][]any, mode WriteMode) (int, error) {
	coll := m.client.Database(m.dbName).Collection(table)
	if mode == WriteReplace {
		if err := coll.Drop(ctx); err != nil {
			return 0, fmt.Errorf("drop %s: %w", table, err)
		}
	}

	const batchSize = 1000
	written := 0
	for chunk := range slices.Chunk(rows, batchSize) {
		docs := make([]any, 0, len(chunk))
		for i, row := range chunk {
			if len(row) != len(cols) {
				return written, fmt.Errorf("row %d has %d values for %d columns", written+i, len(row), len(cols))
			}
			doc := make(bson.D, 0, len(cols))
			for j, col := range cols {
				if row[j] != nil {
					doc = append(doc, bson.E{Key: col.Name, Value: row[j]})
				}
			}
			docs = append(docs, doc)
		}
		res, err := coll.InsertMany(ctx, docs)
		if err != nil {
			return written, fmt.Errorf("insert into %s: %w", table, err)
		}
		written += len(res.InsertedIDs)
	}
	m.logger.Debug("collection written", zap.String("collection", table), zap.Int("docs", written))
	return written, nil
}

func (m *mongoConnector) Close() error {
	m.mu.Lock()
	m.closeCursorLocked(context.Background())
	m.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *mongoConnector) closeCursorLocked(ctx context.Context) {
	if m.cursor != nil {
		m.cursor.Close(ctx)
		m.cursor = nil
	}
}
