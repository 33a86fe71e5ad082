package database

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"cedra_storefront/internal/config"

	"github.com/gocql/gocql"
	"github.com/redis/go-redis/v9"
)

// --- Configuration ScyllaDB ---
type ScyllaKeyspaceConfig struct {
	Hosts       []string
	Keyspace    string
	Username    string
	Password    string
	Timeout     time.Duration
	NumConns    int
	Consistency gocql.Consistency
}

// sessionCheckInterval espace les vérifications d'une session déjà ouverte.
const sessionCheckInterval = 30 * time.Second

// ScyllaManager garde une session par keyspace et la recrée si elle devient invalide.
type ScyllaManager struct {
	sessions  map[string]*gocql.Session // keyspace → session
	checkedAt map[string]time.Time      // keyspace → dernière vérification réussie
	configs   map[string]ScyllaKeyspaceConfig
	mu        sync.Mutex

	ping func(*gocql.Session) error
	now  func() time.Time
}

// NewScyllaManager prépare le gestionnaire pour le keyspace de la boutique.
func NewScyllaManager(cfg *config.Config) *ScyllaManager {
	ks := ScyllaKeyspaceConfig{
		Hosts:       cfg.ScyllaHosts,
		Keyspace:    cfg.ScyllaKeyspace,
		Username:    cfg.ScyllaUsername,
		Password:    cfg.ScyllaPassword,
		Timeout:     5 * time.Second,
		NumConns:    20,
		Consistency: gocql.Quorum,
	}
	return &ScyllaManager{
		sessions:  make(map[string]*gocql.Session),
		checkedAt: make(map[string]time.Time),
		configs:   map[string]ScyllaKeyspaceConfig{ks.Keyspace: ks},
		ping:      pingSession,
		now:       time.Now,
	}
}

func pingSession(session *gocql.Session) error {
	return session.Query("SELECT now() FROM system.local").Exec()
}

// usable vérifie la session au plus une fois par sessionCheckInterval.
func (sm *ScyllaManager) usable(keyspace string, session *gocql.Session) bool {
	if last, ok := sm.checkedAt[keyspace]; ok && sm.now().Sub(last) < sessionCheckInterval {
		return true
	}
	if err := sm.ping(session); err != nil {
		delete(sm.checkedAt, keyspace)
		return false
	}
	sm.checkedAt[keyspace] = sm.now()
	return true
}

// createScyllaCluster crée une configuration de cluster pour un keyspace
func createScyllaCluster(config ScyllaKeyspaceConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(config.Hosts...)
	cluster.Keyspace = config.Keyspace
	cluster.Consistency = config.Consistency
	// Les LWT (IF NOT EXISTS) utilisent la phase Paxos
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.Timeout = config.Timeout
	cluster.NumConns = config.NumConns
	cluster.MaxWaitSchemaAgreement = 30 * time.Second
	cluster.ReconnectInterval = 1 * time.Second

	if config.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: config.Username,
			Password: config.Password,
		}
	}

	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	return cluster
}

// GetSession retourne une session pour un keyspace donné
func (sm *ScyllaManager) GetSession(keyspace string) (*gocql.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	config, exists := sm.configs[keyspace]
	if !exists {
		return nil, fmt.Errorf("keyspace '%s' non configuré", keyspace)
	}

	if session, exists := sm.sessions[keyspace]; exists {
		if sm.usable(keyspace, session) {
			return session, nil
		}
		// Session invalide, on la recrée
		session.Close()
		delete(sm.sessions, keyspace)
	}

	session, err := createScyllaCluster(config).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("erreur création session pour %s: %w", keyspace, err)
	}

	sm.sessions[keyspace] = session
	sm.checkedAt[keyspace] = sm.now()
	log.Printf("✅ Nouvelle session ScyllaDB pour keyspace '%s'", keyspace)
	return session, nil
}

// Close ferme toutes les sessions ScyllaDB
func (sm *ScyllaManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for keyspace, session := range sm.sessions {
		session.Close()
		log.Printf("🔌 Session ScyllaDB fermée pour keyspace '%s'", keyspace)
	}
	sm.sessions = make(map[string]*gocql.Session)
	sm.checkedAt = make(map[string]time.Time)
}

// ConnectRedis ouvre le client Redis et vérifie la connexion.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisHost,
		Password:     cfg.RedisPassword,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("impossible de se connecter à Redis: %w", err)
	}
	log.Println("✅ Connecté à Redis")
	return client, nil
}
