package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sharetube/party/internal/repository/room"
)

type MemberClaims struct {
	RoomID        string
	ParticipantID string
}

func (s service) generateJWT(roomID, participantID string) (string, error) {
	claims := jwt.MapClaims{
		"room_id":        roomID,
		"participant_id": participantID,
		"iat":            s.now().Unix(),
	}
	if s.memberTokenTTL > 0 {
		claims["exp"] = s.now().Add(s.memberTokenTTL).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(s.secret)
}

func (s service) parseJWT(tokenString string) (MemberClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return MemberClaims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return MemberClaims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return MemberClaims{}, ErrInvalidToken
	}

	roomID, _ := claims["room_id"].(string)
	participantID, _ := claims["participant_id"].(string)
	if roomID == "" || participantID == "" {
		return MemberClaims{}, ErrInvalidToken
	}

	return MemberClaims{
		RoomID:        roomID,
		ParticipantID: participantID,
	}, nil
}

// AuthorizeMember checks that token was issued for roomID and that its
// participant is still present in the room.
func (s service) AuthorizeMember(ctx context.Context, roomID, token string) (MemberClaims, error) {
	claims, err := s.parseJWT(token)
	if err != nil {
		return MemberClaims{}, err
	}

	if claims.RoomID != roomID {
		return MemberClaims{}, ErrNotAMember
	}

	if _, err := s.getActiveRoom(ctx, roomID); err != nil {
		return MemberClaims{}, err
	}

	if _, err := s.roomRepo.GetParticipant(ctx, roomID, claims.ParticipantID); err != nil {
		if errors.Is(err, room.ErrParticipantNotFound) {
			return MemberClaims{}, ErrNotAMember
		}

		return MemberClaims{}, fmt.Errorf("failed to get participant: %w", err)
	}

	return claims, nil
}
