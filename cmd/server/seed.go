package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/UkralStul/social-feed-service/internal/auth"
	"github.com/UkralStul/social-feed-service/internal/comments"
	"github.com/UkralStul/social-feed-service/internal/config"
	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/engagement"
	"github.com/UkralStul/social-feed-service/internal/events"
	"github.com/UkralStul/social-feed-service/internal/notify"
	"github.com/UkralStul/social-feed-service/internal/storage"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"
)

const (
	defaultSeedUsers = 10
	defaultSeedPosts = 3
)

var (
	seedUsers int
	seedPosts int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with fake profiles, posts and interactions",
	Long: `Creates fake profiles with posts, follows, likes and comments.
Prints a bearer token for every profile when JWT_SECRET is set.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedUsers, "users", defaultSeedUsers, "number of profiles to create")
	seedCmd.Flags().IntVar(&seedPosts, "posts", defaultSeedPosts, "posts per profile")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := initLogger(cfg)
	if cfg.Storage != config.StoragePostgres {
		return errors.New("seed requires postgres storage, in-memory data is seeded by serve on start")
	}
	if seedUsers < 2 {
		return errors.New("--users must be at least 2")
	}

	store, closeStore, err := openStorage(cfg, true)
	if err != nil {
		return err
	}
	defer closeStore()

	users, err := fillWithMockData(cmd.Context(), store, log, seedUsers, seedPosts)
	if err != nil {
		return err
	}
	return printTokens(cmd.OutOrStdout(), cfg, users)
}

// fillWithMockData создает профили, посты, подписки, лайки и комментарии.
func fillWithMockData(ctx context.Context, store storage.Storage, log *slog.Logger, userCount, postsPerUser int) ([]*domain.Profile, error) {
	gofakeit.Seed(time.Now().UnixNano())
	n := notify.New(store, events.Noop{}, log)
	eng := engagement.New(store, n, log)
	cs := comments.New(store, n, log)

	users := make([]*domain.Profile, 0, userCount)
	for i := 0; i < userCount; i++ {
		p, err := store.CreateProfile(ctx, &domain.Profile{
			ID:        gofakeit.UUID(),
			Username:  fakeUsername(i),
			Name:      gofakeit.Name(),
			Bio:       gofakeit.Sentence(10),
			Email:     gofakeit.Email(),
			AvatarURL: gofakeit.ImageURL(200, 200),
		})
		if err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		users = append(users, p)
	}

	var postIDs []string
	for _, u := range users {
		for j := 0; j < postsPerUser; j++ {
			kind := domain.MediaImage
			if gofakeit.Number(1, 5) == 1 {
				kind = domain.MediaVideo
			}
			caption := fmt.Sprintf("%s #%s", gofakeit.Sentence(8), strings.ToLower(gofakeit.HipsterWord()))
			var mentions []string
			if other := users[gofakeit.Number(0, len(users)-1)]; other.ID != u.ID && gofakeit.Bool() {
				caption += " @" + other.Username
				mentions = append(mentions, other.ID)
			}
			p, err := store.CreatePost(ctx, &domain.Post{
				UserID:    u.ID,
				Caption:   caption,
				MediaURL:  gofakeit.ImageURL(640, 640),
				MediaType: kind,
			}, mentions)
			if err != nil {
				return nil, fmt.Errorf("create post: %w", err)
			}
			postIDs = append(postIDs, p.ID)
		}
	}

	var follows, likes, replies int
	for _, u := range users {
		for k := 0; k < len(users)/2; k++ {
			target := users[gofakeit.Number(0, len(users)-1)]
			if target.ID == u.ID {
				continue
			}
			if err := eng.Follow(ctx, u.ID, target.ID); err != nil {
				return nil, fmt.Errorf("follow: %w", err)
			}
			follows++
		}
		for _, postID := range postIDs {
			if gofakeit.Number(1, 4) != 1 {
				continue
			}
			if _, err := eng.ToggleLike(ctx, u.ID, postID); err != nil {
				return nil, fmt.Errorf("like: %w", err)
			}
			likes++
			if gofakeit.Bool() {
				if _, err := cs.Create(ctx, u.ID, postID, gofakeit.Sentence(6), ""); err != nil {
					return nil, fmt.Errorf("comment: %w", err)
				}
				replies++
			}
		}
	}
	log.Info("seed complete", "profiles", len(users), "posts", len(postIDs), "follows", follows, "likes", likes, "comments", replies)
	return users, nil
}

// printTokens печатает токен на каждый профиль, если задан JWT_SECRET.
func printTokens(out io.Writer, cfg *config.Config, users []*domain.Profile) error {
	if cfg.JWTSecret == "" {
		return nil
	}
	for _, u := range users {
		token, err := auth.Sign(cfg.JWTSecret, cfg.JWTAudience, auth.Identity{UserID: u.ID, Email: u.Email}, 24*time.Hour)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-30s %s\n", u.Username, token)
	}
	return nil
}

// fakeUsername дает имя, проходящее проверку профиля: [a-z0-9_.], не длиннее 30 символов.
func fakeUsername(i int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(gofakeit.Username()) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len(name) > 24 {
		name = name[:24]
	}
	return fmt.Sprintf("%s_%d", name, i)
}
