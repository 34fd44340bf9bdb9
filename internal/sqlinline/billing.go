package sqlinline

const QInsertCheckoutIntent = `--sql 8e71c4d9-2b5a-4f38-a0c7-94e6d1f82b30
insert into checkout_intents(id, user_id, plan, amount_int, currency, status, reference, created_at, updated_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::bigint, $4::text, 'PENDING', $5::text, now(), now())
returning id;
`

// QMarkCheckoutByReference resolves a payment provider webhook. A paid
// confirmation also upgrades the user's plan and the plan's daily quota in
// the same statement; $3 maps plan names to quotas and usage resets to 0 so
// the new allowance applies immediately.
const QMarkCheckoutByReference = `--sql e2f50a86-9c13-4d7b-b4e8-07a5c3d61f92
with marked as (
    update checkout_intents
    set status = $2::text, updated_at = now()
    where reference = $1::text
    returning id, user_id, plan
),
upgraded as (
    update users u
    set plan = marked.plan,
        properties = jsonb_set(
            jsonb_set(u.properties, '{quota_daily}', coalesce($3::jsonb -> marked.plan, to_jsonb(2)), true),
            '{quota_used_today}', to_jsonb(0), true),
        updated_at = now()
    from marked
    where u.id = marked.user_id and $2::text = 'PAID'
    returning u.id
)
select marked.id, marked.user_id, marked.plan from marked;
`
