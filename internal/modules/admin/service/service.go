package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"anoa.com/lazylegends/internal/entity"
	"anoa.com/lazylegends/internal/modules/admin/dto"
	searchService "anoa.com/lazylegends/internal/modules/search/service"
	userRepo "anoa.com/lazylegends/internal/modules/user/repository"
	"anoa.com/lazylegends/pkg/apperror"
	"anoa.com/lazylegends/pkg/ledger"
	"anoa.com/lazylegends/pkg/logger"
	"anoa.com/lazylegends/pkg/storage"
	"anoa.com/lazylegends/pkg/validator"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound    = apperror.New(http.StatusNotFound, "user not found", apperror.ErrNotFound)
	ErrMintUnavailable = apperror.New(http.StatusServiceUnavailable, "token minting is not configured", apperror.ErrUpstream)
)

// collectiblePrefix prefixes the NFT metadata of every minted item.
const collectiblePrefix = "LazyLegend#"

type AdminService interface {
	ListUsers(ctx context.Context) ([]dto.UserSummary, error)
	DeleteUser(ctx context.Context, handle string) error
	// ClearInvalidUsers removes only rows whose handle is empty or malformed.
	ClearInvalidUsers(ctx context.Context) (*dto.ClearInvalidUsersResponse, error)
	MintCollectible(ctx context.Context, req dto.MintRequest) (*dto.MintResponse, error)
}

type adminService struct {
	users        userRepo.UserRepository
	imageStorage storage.ImageStorage
	search       searchService.SearchService
	ledger       ledger.Ledger
}

func NewAdminService(users userRepo.UserRepository, imageStorage storage.ImageStorage, search searchService.SearchService, l ledger.Ledger) AdminService {
	return &adminService{
		users:        users,
		imageStorage: imageStorage,
		search:       search,
		ledger:       l,
	}
}

func (s *adminService) ListUsers(ctx context.Context) ([]dto.UserSummary, error) {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]dto.UserSummary, 0, len(users))
	for _, u := range users {
		res = append(res, dto.UserSummary{
			Handle:        u.Handle,
			Wallet:        u.Wallet,
			Points:        u.Points,
			Image:         u.ImageURL,
			LastCheckedAt: u.LastCheckedAt,
			CreatedAt:     u.CreatedAt,
		})
	}
	return res, nil
}

func (s *adminService) DeleteUser(ctx context.Context, handle string) error {
	user, err := s.users.FindByHandle(ctx, validator.NormalizeHandle(handle))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return s.remove(ctx, user)
}

func (s *adminService) remove(ctx context.Context, user *entity.User) error {
	if err := s.users.Delete(ctx, user.Handle); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	fields := logrus.Fields{"handle": user.Handle}
	if user.ImageURL != nil && *user.ImageURL != "" {
		if err := s.imageStorage.DeleteImage(ctx, *user.ImageURL); err != nil {
			logger.WithFields(fields).WithError(err).Warn("Failed to delete profile image")
		}
	}
	if err := s.search.DeleteUser(user.Handle); err != nil {
		logger.WithFields(fields).WithError(err).Warn("Failed to remove user from search index")
	}

	logger.WithFields(fields).Info("User deleted by admin")
	return nil
}

func (s *adminService) ClearInvalidUsers(ctx context.Context) (*dto.ClearInvalidUsersResponse, error) {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	removed := []string{}
	for _, u := range users {
		if u.Handle != "" && validator.IsValidHandle(u.Handle) {
			continue
		}
		if err := s.remove(ctx, u); err != nil && !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		removed = append(removed, u.Handle)
	}

	return &dto.ClearInvalidUsersResponse{
		Message: "invalid users cleared",
		Deleted: len(removed),
		Handles: removed,
	}, nil
}

func (s *adminService) MintCollectible(ctx context.Context, req dto.MintRequest) (*dto.MintResponse, error) {
	tokenID := strings.TrimSpace(req.TokenID)
	if !validator.IsValidWallet(tokenID) {
		return nil, apperror.Validation("Token id must be a Hedera token id like 0.0.12345")
	}
	itemID := strings.TrimSpace(req.ItemID)
	if itemID == "" {
		return nil, apperror.Validation("Item id is required")
	}

	metadata := collectiblePrefix + itemID
	res, err := s.ledger.MintNFT(ctx, tokenID, [][]byte{[]byte(metadata)})
	if errors.Is(err, ledger.ErrLedgerDisabled) {
		return nil, ErrMintUnavailable
	}
	if err != nil {
		logger.WithFields(logrus.Fields{"token_id": tokenID, "item_id": itemID}).WithError(err).Error("NFT mint failed")
		return nil, apperror.Upstream("minting failed, please try again", err)
	}

	logger.WithFields(logrus.Fields{
		"token_id": tokenID,
		"item_id":  itemID,
		"tx_id":    res.TxID,
		"serials":  res.Serials,
	}).Info("Minted collectible")

	serials := res.Serials
	if serials == nil {
		serials = []int64{}
	}
	return &dto.MintResponse{TxID: res.TxID, Serials: serials, Metadata: metadata}, nil
}
