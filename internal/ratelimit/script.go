package ratelimit

// fixedWindowLua increments the counter for a key and arms the window expiry
// on the first hit. The PTTL readback happens in the same script execution, so
// increment-and-check is a single atomic round trip.
//
// A PTTL of -1 means a previous PEXPIRE was lost (e.g. a crashed primary);
// re-arm it so the key cannot leak as an immortal counter.
const fixedWindowLua = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return { current, ttl }
`
