package mongodb

import (
	"context"
	"errors"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/observability"
	"bhabo/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type userStore struct {
	coll *mongo.Collection
}

var _ repository.UserRepository = (*userStore)(nil)

// findOne runs the filter and translates ErrNoDocuments into (nil, nil).
func (s *userStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *userStore) GetByHandle(ctx context.Context, handle string) (*models.User, error) {
	defer observability.ObserveStoreOp("mongo", "user", "get_by_handle")()
	return s.findOne(ctx, bson.M{"username": handle})
}

func (s *userStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	defer observability.ObserveStoreOp("mongo", "user", "get")()
	oid, ok := oidFromHex(id)
	if !ok {
		return nil, nil
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *userStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	defer observability.ObserveStoreOp("mongo", "user", "find_by_identifier")()
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": identifier},
		bson.M{"email": identifier},
	}})
}

func (s *userStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	defer observability.ObserveStoreOp("mongo", "user", "create")()
	user.Normalize()
	doc := userDocFromModel(user)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	result, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.NewValidationError("username or email already in use")
		}
		return nil, err
	}
	user.ID = result.InsertedID.(bson.ObjectID).Hex()
	user.CreatedAt = doc.CreatedAt
	return user, nil
}

// findOneAndUpdate applies update to id and returns the post-update user, or
// (nil, nil) for a missing or unparseable id.
func (s *userStore) findOneAndUpdate(ctx context.Context, id string, update bson.M) (*models.User, error) {
	oid, ok := oidFromHex(id)
	if !ok {
		return nil, nil
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *userStore) Update(ctx context.Context, id string, upd repository.UserUpdate) (*models.User, error) {
	defer observability.ObserveStoreOp("mongo", "user", "update")()
	set := bson.M{}
	unset := bson.M{}
	if upd.Password != nil {
		set["password"] = *upd.Password
	}
	if upd.IsVerified != nil {
		set["isVerified"] = *upd.IsVerified
	}
	if upd.IsTyping != nil {
		set["isTyping"] = *upd.IsTyping
	}
	if upd.VerificationCode != nil {
		set["verificationCode"] = *upd.VerificationCode
	}
	if upd.VerificationCodeExpires != nil {
		set["verificationCodeExpires"] = *upd.VerificationCodeExpires
	}
	if upd.ClearVerificationCode {
		unset["verificationCode"] = ""
		unset["verificationCodeExpires"] = ""
	}
	if upd.ResetPasswordCode != nil {
		set["resetPasswordCode"] = *upd.ResetPasswordCode
	}
	if upd.ResetPasswordCodeExpires != nil {
		set["resetPasswordCodeExpires"] = *upd.ResetPasswordCodeExpires
	}
	if upd.ClearResetPasswordCode {
		unset["resetPasswordCode"] = ""
		unset["resetPasswordCodeExpires"] = ""
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return s.GetByID(ctx, id)
	}
	return s.findOneAndUpdate(ctx, id, update)
}

func (s *userStore) UpdateProfileFields(ctx context.Context, id string, upd repository.ProfileUpdate) (*models.User, error) {
	defer observability.ObserveStoreOp("mongo", "user", "update_profile")()
	set := bson.M{}
	if upd.FirstName != nil {
		set["firstName"] = *upd.FirstName
	}
	if upd.LastName != nil {
		set["lastName"] = *upd.LastName
	}
	if upd.DisplayName != nil {
		set["displayName"] = *upd.DisplayName
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.ProfilePicture != nil {
		set["profilePicture"] = *upd.ProfilePicture
	}
	if len(set) == 0 {
		return s.GetByID(ctx, id)
	}
	return s.findOneAndUpdate(ctx, id, bson.M{"$set": set})
}

// mutateSet applies a $addToSet or $pull on one of the user's ID sets.
// Unparseable identifiers make it a no-op, matching the missing-user rule.
func (s *userStore) mutateSet(ctx context.Context, id, op, field, member string) error {
	oid, ok := oidFromHex(id)
	if !ok {
		return nil
	}
	memberOID, ok := oidFromHex(member)
	if !ok {
		return nil
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{op: bson.M{field: memberOID}})
	return err
}

func (s *userStore) AddFollower(ctx context.Context, targetID, followerID string) error {
	defer observability.ObserveStoreOp("mongo", "user", "add_follower")()
	return s.mutateSet(ctx, targetID, "$addToSet", "followers", followerID)
}

func (s *userStore) RemoveFollower(ctx context.Context, targetID, followerID string) error {
	defer observability.ObserveStoreOp("mongo", "user", "remove_follower")()
	return s.mutateSet(ctx, targetID, "$pull", "followers", followerID)
}

func (s *userStore) AddFollowing(ctx context.Context, followerID, targetID string) error {
	defer observability.ObserveStoreOp("mongo", "user", "add_following")()
	return s.mutateSet(ctx, followerID, "$addToSet", "following", targetID)
}

func (s *userStore) RemoveFollowing(ctx context.Context, followerID, targetID string) error {
	defer observability.ObserveStoreOp("mongo", "user", "remove_following")()
	return s.mutateSet(ctx, followerID, "$pull", "following", targetID)
}

// findPublic runs filter/opts and returns public views.
func (s *userStore) findPublic(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*models.PublicUser, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := []*models.PublicUser{}
	for i := range docs {
		users = append(users, docs[i].toModel().Public())
	}
	return users, nil
}

func (s *userStore) Search(ctx context.Context, query string) ([]*models.PublicUser, error) {
	defer observability.ObserveStoreOp("mongo", "user", "search")()
	pattern := repository.FuzzyPattern(query)
	re := bson.M{"$regex": pattern, "$options": "i"}
	return s.findPublic(ctx, bson.M{"$or": bson.A{
		bson.M{"username": re},
		bson.M{"displayName": re},
	}}, nil)
}

func (s *userStore) SetOnline(ctx context.Context, id string, online bool) error {
	defer observability.ObserveStoreOp("mongo", "user", "set_online")()
	oid, ok := oidFromHex(id)
	if !ok {
		return nil
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"isOnline": online}})
	return err
}

func (s *userStore) Block(ctx context.Context, blockerID, targetID string) error {
	defer observability.ObserveStoreOp("mongo", "user", "block")()
	return s.mutateSet(ctx, blockerID, "$addToSet", "blockedUsers", targetID)
}

func (s *userStore) Unblock(ctx context.Context, blockerID, targetID string) error {
	defer observability.ObserveStoreOp("mongo", "user", "unblock")()
	return s.mutateSet(ctx, blockerID, "$pull", "blockedUsers", targetID)
}

func (s *userStore) IsBlocked(ctx context.Context, id, targetID string) (bool, error) {
	defer observability.ObserveStoreOp("mongo", "user", "is_blocked")()
	oid, ok := oidFromHex(id)
	if !ok {
		return false, nil
	}
	targetOID, ok := oidFromHex(targetID)
	if !ok {
		return false, nil
	}
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": oid, "blockedUsers": targetOID})
	return n > 0, err
}

func (s *userStore) listByPresence(ctx context.Context, online bool, excludeID string, genderFilter models.Gender, limit int) ([]*models.PublicUser, error) {
	filter := bson.M{"isOnline": online}
	if oid, ok := oidFromHex(excludeID); ok {
		filter["_id"] = bson.M{"$ne": oid}
	}
	// A Male or Female filter selects the opposite gender.
	if want := genderFilter.Opposite(); want != "" {
		filter["gender"] = want
	}
	opts := options.Find()
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	return s.findPublic(ctx, filter, opts)
}

func (s *userStore) ListOnline(ctx context.Context, excludeID string, genderFilter models.Gender, limit int) ([]*models.PublicUser, error) {
	defer observability.ObserveStoreOp("mongo", "user", "list_online")()
	return s.listByPresence(ctx, true, excludeID, genderFilter, limit)
}

func (s *userStore) ListOffline(ctx context.Context, excludeID string, genderFilter models.Gender, limit int) ([]*models.PublicUser, error) {
	defer observability.ObserveStoreOp("mongo", "user", "list_offline")()
	return s.listByPresence(ctx, false, excludeID, genderFilter, limit)
}

// summaries batch-loads the users for the given hex IDs and returns their
// author cards keyed by hex ID.
func (s *userStore) summaries(ctx context.Context, ids []string) (map[string]*models.UserSummary, error) {
	oids := oidsFromHex(ids)
	out := map[string]*models.UserSummary{}
	if len(oids) == 0 {
		return out, nil
	}
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	for i := range docs {
		u := docs[i].toModel()
		out[u.ID] = u.Summary()
	}
	return out, nil
}
