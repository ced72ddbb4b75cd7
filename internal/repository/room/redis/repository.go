package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/party/internal/repository/room"
)

// Shared Lua helpers prepended to every script.
//
// touch moves last_activity forward (never backwards) and keeps the active
// rooms index in sync while the room is active.
// withHash returns {status, field1, value1, ...}.
const luaHelpers = `
local function touch(roomKey, activeKey, roomId, now)
	local last = redis.call('HGET', roomKey, 'last_activity') or '0'
	if tonumber(now) > tonumber(last) then
		redis.call('HSET', roomKey, 'last_activity', now)
		last = now
	end
	if redis.call('HGET', roomKey, 'is_active') == '1' then
		redis.call('ZADD', activeKey, last, roomId)
	end
end

local function withHash(status, key)
	local out = {status}
	local h = redis.call('HGETALL', key)
	for i = 1, #h do
		out[#out + 1] = h[i]
	end
	return out
end
`

// KEYS: room, code, active, participants, participant
// ARGV: room id, now, participant id, record id, display name, room fields...
const createRoomScript = luaHelpers + `
if redis.call('EXISTS', KEYS[1]) == 1 then
	return {'ROOM_EXISTS'}
end
if not redis.call('SET', KEYS[2], ARGV[1], 'NX') then
	return {'CODE_TAKEN'}
end
redis.call('HSET', KEYS[1], unpack(ARGV, 6, #ARGV))
redis.call('HSET', KEYS[5],
	'id', ARGV[4],
	'room_id', ARGV[1],
	'participant_id', ARGV[3],
	'display_name', ARGV[5],
	'is_host', '1',
	'joined_at', ARGV[2],
	'last_seen', ARGV[2])
redis.call('ZADD', KEYS[4], ARGV[2], ARGV[3])
touch(KEYS[1], KEYS[3], ARGV[1], ARGV[2])
return {'OK'}
`

// KEYS: room, participants, participant, active
// ARGV: room id, participant id, record id, display name, now
const joinRoomScript = luaHelpers + `
if redis.call('HGET', KEYS[1], 'is_active') ~= '1' then
	return {'ROOM_NOT_FOUND'}
end
if redis.call('EXISTS', KEYS[3]) == 1 then
	local seen = redis.call('HGET', KEYS[3], 'last_seen') or '0'
	if tonumber(ARGV[5]) > tonumber(seen) then
		redis.call('HSET', KEYS[3], 'last_seen', ARGV[5])
	end
	if ARGV[4] ~= '' then
		redis.call('HSET', KEYS[3], 'display_name', ARGV[4])
	end
	touch(KEYS[1], KEYS[4], ARGV[1], ARGV[5])
	return withHash('EXISTING', KEYS[3])
end
local count = tonumber(redis.call('HGET', KEYS[1], 'participant_count') or '0')
local max = tonumber(redis.call('HGET', KEYS[1], 'max_participants') or '0')
if count >= max then
	return {'ROOM_FULL'}
end
redis.call('HSET', KEYS[3],
	'id', ARGV[3],
	'room_id', ARGV[1],
	'participant_id', ARGV[2],
	'display_name', ARGV[4],
	'is_host', '0',
	'joined_at', ARGV[5],
	'last_seen', ARGV[5])
redis.call('ZADD', KEYS[2], ARGV[5], ARGV[2])
redis.call('HINCRBY', KEYS[1], 'participant_count', 1)
touch(KEYS[1], KEYS[4], ARGV[1], ARGV[5])
return withHash('CREATED', KEYS[3])
`

// KEYS: room, participants, participant, active
// ARGV: room id, participant id, now, seen before (0 = unconditional)
const leaveRoomScript = luaHelpers + `
if redis.call('EXISTS', KEYS[3]) == 0 then
	return {'NOT_FOUND'}
end
local before = tonumber(ARGV[4])
if before > 0 then
	local seen = tonumber(redis.call('HGET', KEYS[3], 'last_seen') or '0')
	if seen >= before then
		return {'FRESH'}
	end
end
redis.call('DEL', KEYS[3])
redis.call('ZREM', KEYS[2], ARGV[2])
if redis.call('EXISTS', KEYS[1]) == 1 then
	local count = tonumber(redis.call('HGET', KEYS[1], 'participant_count') or '0')
	if count > 0 then
		redis.call('HINCRBY', KEYS[1], 'participant_count', -1)
	end
	touch(KEYS[1], KEYS[4], ARGV[1], ARGV[3])
end
return {'OK'}
`

// KEYS: participant
// ARGV: now
const touchParticipantScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return {'NOT_FOUND'}
end
local seen = redis.call('HGET', KEYS[1], 'last_seen') or '0'
if tonumber(ARGV[1]) > tonumber(seen) then
	redis.call('HSET', KEYS[1], 'last_seen', ARGV[1])
end
return {'OK'}
`

// KEYS: room, active
// ARGV: room id, now, position, is playing, speed ('' = omitted)
const updatePlaybackScript = luaHelpers + `
if redis.call('HGET', KEYS[1], 'is_active') ~= '1' then
	return {'ROOM_NOT_FOUND'}
end
if ARGV[3] ~= '' then
	redis.call('HSET', KEYS[1], 'playback_position', ARGV[3])
end
if ARGV[4] ~= '' then
	redis.call('HSET', KEYS[1], 'is_playing', ARGV[4])
end
if ARGV[5] ~= '' then
	redis.call('HSET', KEYS[1], 'playback_speed', ARGV[5])
end
touch(KEYS[1], KEYS[2], ARGV[1], ARGV[2])
return withHash('OK', KEYS[1])
`

// KEYS: room, active, participants, messages, message seq
// ARGV: room id, now, idle before (0 = unconditional), code key prefix,
// retention seconds, participant key prefix
//
// The code key and the participant keys are derived inside the script. The
// participant keys share the room hash tag, the code key does not.
const closeRoomScript = luaHelpers + `
if redis.call('HGET', KEYS[1], 'is_active') ~= '1' then
	return {'ROOM_NOT_FOUND'}
end
local before = tonumber(ARGV[3])
if before > 0 then
	local count = tonumber(redis.call('HGET', KEYS[1], 'participant_count') or '0')
	local last = tonumber(redis.call('HGET', KEYS[1], 'last_activity') or '0')
	if count > 0 or last >= before then
		return {'BUSY'}
	end
end
local codeKey = ARGV[4] .. (redis.call('HGET', KEYS[1], 'code') or '')
if redis.call('GET', codeKey) == ARGV[1] then
	redis.call('DEL', codeKey)
end
touch(KEYS[1], KEYS[2], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[1], 'is_active', '0')
redis.call('ZREM', KEYS[2], ARGV[1])
local ttl = tonumber(ARGV[5])
if ttl > 0 then
	for _, pid in ipairs(redis.call('ZRANGE', KEYS[3], 0, -1)) do
		redis.call('EXPIRE', ARGV[6] .. pid, ttl)
	end
	redis.call('EXPIRE', KEYS[3], ttl)
	redis.call('EXPIRE', KEYS[4], ttl)
	redis.call('EXPIRE', KEYS[5], ttl)
	redis.call('EXPIRE', KEYS[1], ttl)
end
return withHash('OK', KEYS[1])
`

// KEYS: room, participant, messages, message seq, active
// ARGV: room id, now, message id, participant id, display name, body
const addMessageScript = luaHelpers + `
if redis.call('HGET', KEYS[1], 'is_active') ~= '1' then
	return {'ROOM_NOT_FOUND'}
end
if redis.call('EXISTS', KEYS[2]) == 0 then
	return {'NOT_A_MEMBER'}
end
local name = ARGV[5]
if name == '' then
	name = redis.call('HGET', KEYS[2], 'display_name') or ''
end
local sentAt = ARGV[2]
local last = redis.call('HGET', KEYS[1], 'last_message_at') or '0'
if tonumber(sentAt) < tonumber(last) then
	sentAt = last
end
redis.call('HSET', KEYS[1], 'last_message_at', sentAt)
local seq = redis.call('INCR', KEYS[4])
local encoded = cjson.encode({
	id = ARGV[3],
	seq = tostring(seq),
	room_id = ARGV[1],
	participant_id = ARGV[4],
	display_name = name,
	body = ARGV[6],
	sent_at = sentAt,
})
redis.call('RPUSH', KEYS[3], encoded)
touch(KEYS[1], KEYS[5], ARGV[1], ARGV[2])
return {'OK', encoded}
`

var _ room.Store = (*repo)(nil)

type repo struct {
	rc                     *redis.Client
	logger                 *slog.Logger
	retention              time.Duration
	createRoomScript       *redis.Script
	joinRoomScript         *redis.Script
	leaveRoomScript        *redis.Script
	touchParticipantScript *redis.Script
	updatePlaybackScript   *redis.Script
	closeRoomScript        *redis.Script
	addMessageScript       *redis.Script
}

// NewRepo returns a room store backed by Redis. Closed rooms are kept for
// retention before their keys expire.
func NewRepo(rc *redis.Client, retention time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rc:                     rc,
		logger:                 logger,
		retention:              retention,
		createRoomScript:       redis.NewScript(createRoomScript),
		joinRoomScript:         redis.NewScript(joinRoomScript),
		leaveRoomScript:        redis.NewScript(leaveRoomScript),
		touchParticipantScript: redis.NewScript(touchParticipantScript),
		updatePlaybackScript:   redis.NewScript(updatePlaybackScript),
		closeRoomScript:        redis.NewScript(closeRoomScript),
		addMessageScript:       redis.NewScript(addMessageScript),
	}
}
