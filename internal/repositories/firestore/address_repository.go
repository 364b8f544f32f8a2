package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/hanko-field/storefront/internal/domain"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/repositories"
)

const addressCollectionPattern = "users/%s/addresses"

// AddressRepository persists user addresses under users/{uid}/addresses.
type AddressRepository struct {
	provider *pfirestore.Provider
}

// NewAddressRepository constructs a Firestore-backed address repository.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

// List returns the user's addresses oldest first.
func (r *AddressRepository) List(ctx context.Context, userID string) ([]domain.Address, error) {
	coll, err := r.collection(userID)
	if err != nil {
		return nil, err
	}
	docs, err := coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Address, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

// Save stores addr, returning an existing address with the same hash instead of duplicating it.
func (r *AddressRepository) Save(ctx context.Context, userID string, addr domain.Address) (domain.Address, error) {
	id := strings.TrimSpace(addr.ID)
	if id == "" {
		return domain.Address{}, errors.New("address repository: address id is required")
	}
	coll, err := r.collection(userID)
	if err != nil {
		return domain.Address{}, err
	}
	ref, err := coll.Ref(ctx)
	if err != nil {
		return domain.Address{}, err
	}
	hash := repositories.AddressHash(addr)

	var saved domain.Address
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(ref.Where("hash", "==", hash).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			var doc addressDocument
			if err := existing[0].DataTo(&doc); err != nil {
				return fmt.Errorf("decode address %s: %w", existing[0].Ref.ID, err)
			}
			saved = doc.toDomain()
			return nil
		}

		var defaults []*firestore.DocumentSnapshot
		if addr.IsDefault {
			defaults, err = tx.Documents(ref.Where("isDefault", "==", true)).GetAll()
			if err != nil {
				return err
			}
		}

		doc := newAddressDocument(addr, hash)
		if err := tx.Create(ref.Doc(id), doc); err != nil {
			return err
		}
		for _, snap := range defaults {
			if err := tx.Update(snap.Ref, []firestore.Update{{Path: "isDefault", Value: false}}); err != nil {
				return err
			}
		}
		saved = doc.toDomain()
		return nil
	})
	if err != nil {
		return domain.Address{}, pfirestore.WrapError("addresses.save", err)
	}
	return saved, nil
}

// Delete removes the address, reporting not found when it does not exist.
func (r *AddressRepository) Delete(ctx context.Context, userID, addressID string) error {
	coll, err := r.collection(userID)
	if err != nil {
		return err
	}
	doc, err := coll.Doc(ctx, addressID)
	if err != nil {
		return err
	}
	_, err = doc.Delete(ctx, firestore.Exists)
	return pfirestore.WrapError("addresses.delete", err)
}

func (r *AddressRepository) collection(userID string) (pfirestore.Collection[addressDocument], error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return pfirestore.Collection[addressDocument]{}, errors.New("address repository: user id is required")
	}
	return pfirestore.NewCollection[addressDocument](r.provider, fmt.Sprintf(addressCollectionPattern, uid)), nil
}

type addressDocument struct {
	ID         string    `firestore:"id"`
	FirstName  string    `firestore:"firstName"`
	LastName   string    `firestore:"lastName,omitempty"`
	Phone      string    `firestore:"phone,omitempty"`
	Line1      string    `firestore:"addressLine1"`
	Line2      string    `firestore:"addressLine2,omitempty"`
	City       string    `firestore:"city"`
	State      string    `firestore:"state,omitempty"`
	PostalCode string    `firestore:"zipCode"`
	Country    string    `firestore:"country"`
	IsDefault  bool      `firestore:"isDefault"`
	Hash       string    `firestore:"hash"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

func newAddressDocument(addr domain.Address, hash string) addressDocument {
	return addressDocument{
		ID:         addr.ID,
		FirstName:  addr.FirstName,
		LastName:   addr.LastName,
		Phone:      addr.Phone,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		IsDefault:  addr.IsDefault,
		Hash:       hash,
		CreatedAt:  addr.CreatedAt.UTC(),
	}
}

func (d addressDocument) toDomain() domain.Address {
	return domain.Address{
		ID:         d.ID,
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		Phone:      d.Phone,
		Line1:      d.Line1,
		Line2:      d.Line2,
		City:       d.City,
		State:      d.State,
		PostalCode: d.PostalCode,
		Country:    d.Country,
		IsDefault:  d.IsDefault,
		CreatedAt:  d.CreatedAt,
	}
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)
