package sqlinline

const QUpsertGoogleUser = `--sql 5a82e2ad-7b09-40c5-9d22-2d28db58c0f0
with incoming as (
    select
        $1::text as google_sub,
        $2::text as email,
        $3::text as name,
        $4::text as picture,
        $5::text as locale
),
upserted as (
    insert into users (id, email, name, avatar_url, plan, locale_pref, google_sub, properties, created_at, updated_at)
    values (gen_random_uuid(), (select email from incoming), (select name from incoming),
            (select picture from incoming), 'free', (select locale from incoming), (select google_sub from incoming),
            jsonb_build_object('quota_daily', 2, 'quota_used_today', 0, 'preferred_locale', (select locale from incoming)), now(), now())
    on conflict (email) do update set
        name = excluded.name,
        avatar_url = excluded.avatar_url,
        locale_pref = excluded.locale_pref,
        google_sub = excluded.google_sub,
        updated_at = now(),
        properties = jsonb_set(users.properties, '{preferred_locale}', to_jsonb((select locale from incoming)), true)
    returning id, plan, properties
)
select u.id, u.plan, u.properties
from upserted u;
`

const QSelectUserByID = `--sql 1239018e-4f5f-46a0-8f0d-81b2a3a5f0f8
select
    id,
    google_sub,
    email,
    coalesce(locale_pref, properties->>'preferred_locale') as locale,
    plan,
    properties,
    created_at,
    updated_at
from users
where id = $1::uuid
limit 1;
`

const QSelectUserPlanByID = `--sql c5d90a3e-47f1-4b08-92e6-1a8f3bd57024
select id, email, plan, properties
from users
where id = $1::uuid
limit 1;
`

const QSelectUserPlanByEmail = `--sql 2b64f8d1-90ce-4a17-bc55-7e3da80c1f46
select id, email, plan, properties
from users
where lower(email) = lower($1::text)
limit 1;
`

// QUpdateUserPlan powers the userplan admin command. The caller supplies the
// full properties document so quota adjustments land atomically with the plan.
const QUpdateUserPlan = `--sql 7a91d3c8-15ef-4b62-a0d4-c86f25e9b713
update users
set plan = $2::text,
    properties = $3::jsonb,
    updated_at = now()
where id = $1::uuid
returning id, email, plan, properties;
`
